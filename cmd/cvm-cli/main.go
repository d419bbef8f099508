package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	backend    string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cvm-cli",
	Short: "Contract VM command line tool",
	Long: `Contract VM command line tool for deploying and invoking bytecode contracts
against a local state database. Every state changing command runs in a new block.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "leveldb", "State backend: memory, leveldb or sqlite")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./data", "Directory of on-disk backends")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(headCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
