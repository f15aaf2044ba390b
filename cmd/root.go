package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/involk-secure-1609/lant/client"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/config"
	fileserver "github.com/involk-secure-1609/lant/fileServer"
	"github.com/involk-secure-1609/lant/transport"
	"github.com/spf13/cobra"
)

type serverFlags struct {
	listenOn    int
	rootPath    string
	certFile    string
	keyFile     string
	maxInFlight int64
	chunkCache  int
}

type clientFlags struct {
	connectTo   string
	caFile      string
	dialRetries uint
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// NewRootCmd builds the lant command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:           "lant",
		Short:         "resumable file transfer over QUIC",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LANT_LOG_LEVEL)")

	rootCmd.AddCommand(newServerCmd(&logLevel))
	rootCmd.AddCommand(newClientCmd(&logLevel))
	return rootCmd
}

func newServerCmd(logLevel *string) *cobra.Command {
	var flags serverFlags
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "serve the files under a root path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverConfig, err := config.LoadServer()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("listen-on") {
				serverConfig.ListenOn = flags.listenOn
			}
			if fs.Changed("root-path") {
				serverConfig.RootPath = flags.rootPath
			}
			if fs.Changed("cert") {
				serverConfig.CertFile = flags.certFile
			}
			if fs.Changed("key") {
				serverConfig.KeyFile = flags.keyFile
			}
			if fs.Changed("max-in-flight") {
				serverConfig.MaxInFlight = flags.maxInFlight
			}
			if fs.Changed("chunk-cache") {
				serverConfig.ChunkCache = flags.chunkCache
			}
			if *logLevel != "" {
				serverConfig.LogLevel = *logLevel
			}
			if err := serverConfig.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), serverConfig)
		},
	}
	serverCmd.Flags().IntVarP(&flags.listenOn, "listen-on", "l", 0, "the UDP port to listen on")
	serverCmd.Flags().StringVarP(&flags.rootPath, "root-path", "r", "", "the directory to serve")
	serverCmd.Flags().StringVar(&flags.certFile, "cert", "", "the server certificate to present")
	serverCmd.Flags().StringVar(&flags.keyFile, "key", "", "the server private key")
	serverCmd.Flags().Int64Var(&flags.maxInFlight, "max-in-flight", fileserver.DefaultMaxInFlight, "requests handled at once, 0 for no bound")
	serverCmd.Flags().IntVar(&flags.chunkCache, "chunk-cache", fileserver.DefaultChunkCacheSize, "chunks kept in memory for get requests")
	return serverCmd
}

func runServer(ctx context.Context, serverConfig *config.ServerConfig) error {
	logger := common.DefaultLogger(common.ParseLevel(serverConfig.LogLevel))
	logger.Infof("Server starting...")

	tlsConfig, err := transport.ServerTLSConfig(serverConfig.CertFile, serverConfig.KeyFile, logger)
	if err != nil {
		return err
	}
	fileServer, err := fileserver.NewFileServer(fileserver.Config{
		ListenOn:       serverConfig.Address(),
		RootPath:       serverConfig.RootPath,
		TLSConfig:      tlsConfig,
		MaxInFlight:    serverConfig.MaxInFlight,
		ChunkCacheSize: serverConfig.ChunkCache,
	}, logger)
	if err != nil {
		return err
	}
	if err := fileServer.Start(ctx); err != nil {
		return err
	}
	err = fileServer.Wait()
	logger.Infof("Server stopped")
	return err
}

func newClientCmd(logLevel *string) *cobra.Command {
	var flags clientFlags
	// resolved by PersistentPreRunE before any sub command runs
	var lantClient *client.Client

	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "talk to a lant server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			clientConfig, err := config.LoadClient()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("connect-to") {
				clientConfig.ConnectTo = flags.connectTo
			}
			if fs.Changed("ca") {
				clientConfig.CAFile = flags.caFile
			}
			if fs.Changed("dial-retries") {
				clientConfig.DialRetries = flags.dialRetries
			}
			if *logLevel != "" {
				clientConfig.LogLevel = *logLevel
			}
			if err := clientConfig.Validate(); err != nil {
				return err
			}

			logger := common.DefaultLogger(common.ParseLevel(clientConfig.LogLevel))
			tlsConfig, err := transport.ClientTLSConfig(clientConfig.CAFile, logger)
			if err != nil {
				return err
			}
			lantClient = client.NewClient(client.Config{
				ConnectTo:   clientConfig.ConnectTo,
				TLSConfig:   tlsConfig,
				DialRetries: clientConfig.DialRetries,
			}, logger)
			return nil
		},
	}
	clientCmd.PersistentFlags().StringVarP(&flags.connectTo, "connect-to", "c", "", "the server to connect to, host:port")
	clientCmd.PersistentFlags().StringVar(&flags.caFile, "ca", "", "the certificate to verify the server with")
	clientCmd.PersistentFlags().UintVar(&flags.dialRetries, "dial-retries", client.DefaultDialRetries, "connection attempts before giving up")

	var pathOnRemote string
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "list a remote directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := lantClient.Ls(cmd.Context(), pathOnRemote)
			if err != nil {
				return err
			}
			if err := client.PrintLs(cmd.OutOrStdout(), response); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "done")
			return nil
		},
	}
	lsCmd.Flags().StringVarP(&pathOnRemote, "path-on-remote", "p", ".", "the remote path to list")

	var putFilePath, remoteDir string
	putCmd := &cobra.Command{
		Use:   "put",
		Short: "upload a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lantClient.Put(cmd.Context(), putFilePath, remoteDir)
		},
	}
	putCmd.Flags().StringVarP(&putFilePath, "file-path", "f", "", "the local file to upload")
	putCmd.Flags().StringVarP(&remoteDir, "remote-dir", "d", ".", "the remote directory to upload into")
	putCmd.MarkFlagRequired("file-path")

	var getFilePath, localDir string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "download a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return lantClient.Get(cmd.Context(), getFilePath, localDir)
		},
	}
	getCmd.Flags().StringVarP(&getFilePath, "file-path", "f", "", "the remote file to download")
	getCmd.Flags().StringVarP(&localDir, "local-dir", "d", ".", "the local directory to download into")
	getCmd.MarkFlagRequired("file-path")

	clientCmd.AddCommand(lsCmd, putCmd, getCmd)
	return clientCmd
}
