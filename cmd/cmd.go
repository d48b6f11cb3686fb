package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/dosco/bsonq/serv"
	"github.com/spf13/cobra"
	"github.com/thessem/zap-prettyconsole"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	conf  *serv.Config
	cpath string
)

// Cmd is the entry point for the CLI
func Cmd() {
	enc := prettyconsole.NewEncoder(prettyconsole.NewEncoderConfig())
	log = zap.New(zapcore.NewCore(enc, os.Stderr, zap.InfoLevel)).Sugar()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "bsonq",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// setup reads the config file for the current environment
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	if conf, err = serv.ReadInConfig(path.Join(cp, serv.GetConfigName())); err != nil {
		return err
	}
	return nil
}

// newService reads the config and creates a service from it
func newService() (*serv.Service, error) {
	if err := setup(cpath); err != nil {
		return nil, err
	}
	return serv.NewService(conf)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the version, commit and build date of the binary
func BuildDetails() string {
	if version == "" {
		return "bsonq (unknown version)"
	}
	return fmt.Sprintf(`bsonq %s

Commit SHA-1 : %s
Commit timestamp : %s
Go version : %s
OS/Arch : %s/%s`,
		version, commit, date,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
