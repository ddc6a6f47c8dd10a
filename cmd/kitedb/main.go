// Command kitedb is the KiteDB command-line interface: an interactive
// shell over a directory of databases and a line-based TCP server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aabr2612/KiteDB/pkg/config"
	"github.com/aabr2612/KiteDB/pkg/kitedb"
	"github.com/aabr2612/KiteDB/pkg/repl"
	"github.com/aabr2612/KiteDB/pkg/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	dataDir    string
	listen     string
	database   string
	pageSize   uint32
	bufferCap  int
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "kitedb",
		Short: "KiteDB - an embeddable graph database with a Cypher subset",
		Long: `KiteDB stores a labeled property graph in a single paged file and
queries it with a Cypher subset (CREATE, MATCH, WHERE, SET, DELETE, RETURN).

Run 'kitedb shell' for an interactive session or 'kitedb serve' to expose
a database over TCP.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "directory holding <name>.db files")
	root.PersistentFlags().Uint32Var(&flags.pageSize, "page-size", 0, "page size in bytes")
	root.PersistentFlags().IntVar(&flags.bufferCap, "buffer-capacity", 0, "buffer pool capacity in pages")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newShellCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig merges the config file (or defaults) with any explicit flag
// overrides, then applies the log level.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}
	if flags.pageSize != 0 {
		cfg.Storage.PageSize = flags.pageSize
	}
	if flags.bufferCap != 0 {
		cfg.Storage.BufferCapacity = flags.bufferCap
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)
	return cfg, nil
}

func engineOptions(cfg *config.Config) kitedb.Options {
	return kitedb.Options{
		PageSize:       cfg.Storage.PageSize,
		BufferCapacity: cfg.Storage.BufferCapacity,
	}
}

func newServeCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one database over the line-based TCP protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			path := filepath.Join(cfg.DataDir, flags.database+".db")
			db, err := kitedb.Open(path, engineOptions(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Printf("Serving %s on %s\n", path, cfg.Listen)
			return server.New(db).ListenAndServe(cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&flags.listen, "listen", "", "TCP listen address")
	cmd.Flags().StringVar(&flags.database, "database", "default", "database name to serve")
	return cmd
}

func newShellCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			session, err := repl.NewSession(cfg.DataDir, engineOptions(cfg))
			if err != nil {
				return err
			}
			defer session.Close()

			fmt.Printf("KiteDB %s - type .help for help\n", version)
			return session.Run(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kitedb %s\n", version)
		},
	}
}
