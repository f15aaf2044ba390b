package client

import (
	"fmt"
	"io"

	"github.com/involk-secure-1609/lant/common"
)

// Contains helper functions for presenting command results

// PrintLs writes one line per item, files and dirs tagged the same width.
func PrintLs(w io.Writer, response common.LsResponse) error {
	if _, err := fmt.Fprintf(w, "ls dir: %q\n", response.Dir); err != nil {
		return err
	}
	for _, item := range response.Items {
		itemType := "dir "
		if item.IsFile() {
			itemType = "file"
		}
		if _, err := fmt.Fprintf(w, "%s: %q\n", itemType, item.Name); err != nil {
			return err
		}
	}
	return nil
}
