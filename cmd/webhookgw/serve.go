package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"webhookgw/internal/config"
	"webhookgw/internal/dispatch"
	"webhookgw/internal/gateway"
	"webhookgw/internal/history"
	"webhookgw/internal/pkg/logger"
	"webhookgw/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook gateway server",
	Long:  `Start the webhook gateway HTTP server and begin accepting inbound webhooks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := config.Defaults()

		logLevel := viper.GetString("log.level")
		if logLevel == "" {
			logLevel = defaults.LogLevel
		}

		globalLogger, err := logger.New(logLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer globalLogger.Sync()

		port := viper.GetInt("server.port")
		if port == 0 {
			port = defaults.Port
		}
		host := viper.GetString("server.host")
		if host == "" {
			host = defaults.Host
		}
		configPath := viper.GetString("config.path")
		if configPath == "" {
			configPath = defaults.ConfigPath
		}

		configStore := store.New(configPath, globalLogger)
		if err := configStore.Load(); err != nil {
			return fmt.Errorf("failed to load config store: %w", err)
		}

		historyRing := history.New(100)
		dispatcher := dispatch.New(globalLogger)

		addr := fmt.Sprintf("%s:%d", host, port)
		srv := gateway.NewServer(addr, configStore, historyRing, dispatcher, globalLogger)
		return srv.Run(context.Background())
	},
}

// SetupServeCmd registers the serve subcommand and binds its flags into
// viper, following the teacher's cmd/aigis/serve.go pattern.
func SetupServeCmd() {
	rootCmd.AddCommand(serveCmd)

	defaults := config.Defaults()

	serveCmd.Flags().IntP("port", "p", defaults.Port, "Server port")
	serveCmd.Flags().StringP("host", "H", defaults.Host, "Server host")
	serveCmd.Flags().StringP("config", "c", defaults.ConfigPath, "Path to the webhook config JSON document")
	serveCmd.Flags().String("log-level", defaults.LogLevel, "Log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("config.path", serveCmd.Flags().Lookup("config"))
	viper.BindPFlag("log.level", serveCmd.Flags().Lookup("log-level"))
}
