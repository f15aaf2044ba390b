package helper

import (
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/involk-secure-1609/lant/common"
	"github.com/pkg/errors"
)

func OpenExistingFile(path string) (*os.File, error) {
	flags := os.O_RDONLY
	fp, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, err
	}
	return fp, err
}

// OpenChunkFile opens path for positional writes, creating it when absent. Existing bytes are
// kept so a resumed transfer can continue from them.
func OpenChunkFile(path string) (*os.File, error) {
	flags := os.O_RDWR | os.O_CREATE
	fp, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	return fp, err
}

// ReadChunk reads the chunk at index from a file that is length bytes long.
func ReadChunk(r io.ReaderAt, length uint64, index uint64) ([]byte, error) {
	offset := common.ChunkOffset(index)
	if offset > length {
		return nil, errors.Wrapf(common.ErrSizeMismatch, "chunk %d starts past the end of a %d byte file", index, length)
	}
	buffer := make([]byte, common.BoundedBufferSize(length-offset))
	if len(buffer) == 0 {
		return buffer, nil
	}
	n, err := r.ReadAt(buffer, int64(offset))
	if n == len(buffer) {
		return buffer, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(err, "reading chunk %d", index)
}

// MaxChunkIndex is the largest chunk index whose end still fits a file offset.
const MaxChunkIndex = uint64(math.MaxInt64)/common.ChunkUnitSize - 1

// WriteChunk writes data at the offset of chunk index. Writing the same chunk twice leaves the
// file as if it had been written once.
func WriteChunk(w io.WriterAt, index uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if index > MaxChunkIndex {
		return errors.Wrapf(common.ErrPayload, "chunk index %d out of range", index)
	}
	_, err := w.WriteAt(data, int64(common.ChunkOffset(index)))
	return errors.Wrapf(err, "writing chunk %d", index)
}

// CanonicalRoot resolves root to an absolute path with symlinks evaluated. It must be a directory.
func CanonicalRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", errors.Wrapf(common.ErrPath, "root path %q: %v", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", errors.Wrapf(common.ErrPath, "root path %q: %v", root, err)
	}
	if !info.IsDir() {
		return "", errors.Wrapf(common.ErrPath, "root path %q is not a dir", root)
	}
	return absRoot, nil
}

// IsWithinRoot reports whether path is root itself or one of its descendants.
// Both must already be absolute and clean.
func IsWithinRoot(root string, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveUnderRoot joins rel onto root and evaluates symlinks. An absolute rel is taken as is.
// The returned flag is false when the real path lands outside root. A path that does not exist
// is a path error.
func ResolveUnderRoot(root string, rel string) (string, bool, error) {
	joined := filepath.Join(root, rel)
	if filepath.IsAbs(rel) {
		joined = filepath.Clean(rel)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, errors.Wrapf(common.ErrPath, "path not exists, path=%q", rel)
		}
		return "", false, errors.Wrapf(common.ErrPath, "path %q: %v", rel, err)
	}
	return resolved, IsWithinRoot(root, resolved), nil
}

// ResolveDirOrRoot resolves rel under root, falling back to root itself when rel escapes it.
// An absolute rel outside root falls back to root whether it exists or not.
func ResolveDirOrRoot(root string, rel string) (string, error) {
	if filepath.IsAbs(rel) && !IsWithinRoot(root, filepath.Clean(rel)) {
		return root, nil
	}
	resolved, within, err := ResolveUnderRoot(root, rel)
	if err != nil {
		return "", err
	}
	if !within {
		return root, nil
	}
	return resolved, nil
}

// ResolveRegularFile resolves rel under root and requires a regular file inside root.
func ResolveRegularFile(root string, rel string) (string, error) {
	resolved, within, err := ResolveUnderRoot(root, rel)
	if err != nil {
		return "", errors.Wrapf(common.ErrPath, "file not exists, path=%q", rel)
	}
	if !within {
		return "", errors.Wrapf(common.ErrPath, "file not exists, path=%q", rel)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", errors.Wrapf(common.ErrPath, "file not exists, path=%q", rel)
	}
	return resolved, nil
}

// DestinationFile resolves the file a put writes into: remoteDir under root (root when it
// escapes) joined with the base name of fileName.
func DestinationFile(root string, remoteDir string, fileName string) (string, error) {
	dir, err := ResolveDirOrRoot(root, remoteDir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", errors.Wrapf(common.ErrPath, "remote dir is not a dir, path=%q", remoteDir)
	}

	name := filepath.Base(filepath.Clean(fileName))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", errors.Wrapf(common.ErrPath, "invalid file name %q", fileName)
	}
	destination := filepath.Join(dir, name)

	// an existing symlink must not lead the write out of root
	if resolved, err := filepath.EvalSymlinks(destination); err == nil {
		if !IsWithinRoot(root, resolved) {
			return "", errors.Wrapf(common.ErrPath, "destination escapes root, path=%q", fileName)
		}
		destination = resolved
	}
	return destination, nil
}
