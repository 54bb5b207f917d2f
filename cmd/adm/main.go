// Package main provides the main entry point for the tutoring platform admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"codebot/cmd/adm/commands"
	"codebot/internal/config"
	"codebot/internal/database"
	"codebot/internal/observability"
	"codebot/internal/services"

	"github.com/spf13/cobra"
)

// Global variables for shared resources
var (
	cfg         *config.Config
	logger      *observability.Logger
	userService *services.UserService
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("CODEBOT_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../config.yaml",    // From cmd/adm/
			"../../config.yaml", // From cmd/adm/ (alternative)
			"config.yaml",       // Current directory
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("CODEBOT_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set CODEBOT_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	// Load configuration
	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for the admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "codebot-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance

	// Initialize database connection (no migrations unless asked for)
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initialize services
	userService = services.NewUserServiceWithLogger(db, cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "CodeBot Academy Administration Tool",
		Long: `CodeBot Academy Administration Tool

A CLI tool for administering the tutoring platform backend.
Provides commands for user management and database operations.`,

		Run: func(cmd *cobra.Command, _ []string) {
			// Show help if no subcommand provided
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DatabaseCommands(userService, logger, dbManager, db, cfg.Database.URL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
