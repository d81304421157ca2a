package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lockerd/lockerd/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "lockerd",
	Short:   "Session-authenticated per-user file storage server",
	Long: `Lockerd is a small backend providing session-based authentication
and per-user file storage backed by an S3-compatible object store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
			files = append(files, cfgFile)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		cmd.SetContext(withConfig(cmd.Context(), cfg))
		setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("store-type", "", "credential store type: file, sqlite, postgres (env: LOCKERD_STORE_TYPE)")
	rootCmd.PersistentFlags().String("store-path", "", "credential file path for the file store (env: LOCKERD_STORE_PATH)")
	rootCmd.PersistentFlags().String("store-dsn", "", "credential store connection string (env: LOCKERD_STORE_DSN)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
