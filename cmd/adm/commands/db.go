// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"os"

	"codebot/internal/database"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(userService *services.UserService, logger *observability.Logger, dbManager *database.Manager, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the tutoring platform.

Available commands:
  stats    - Show database statistics
  migrate  - Apply pending schema migrations`,
	}

	dbCmd.AddCommand(statsCmd(userService, logger, db))
	dbCmd.AddCommand(migrateCmd(logger, dbManager, databaseURL))

	return dbCmd
}

func statsCmd(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show database statistics including user, problem, and submission counts.`,
		RunE:  runStats(userService, logger, db),
	}
}

func migrateCmd(logger *observability.Logger, dbManager *database.Manager, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply any pending golang-migrate migrations from the migrations directory.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Applying migrations", map[string]interface{}{"database_url": maskDatabaseURL(databaseURL)})
			if err := dbManager.RunMigrations(databaseURL); err != nil {
				return contextutils.WrapError(err, "failed to apply migrations")
			}
			logger.Info(ctx, "Migrations applied", nil)
			return nil
		},
	}
}

// runStats returns a function that shows database statistics
func runStats(userService *services.UserService, logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("CODEBOT_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if db == nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "database connection not available")
		}

		users, err := userService.GetAllUsers(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get user statistics", err, map[string]interface{}{})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to get user statistics: %v", err)
		}

		var problems, submissions, histories int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM problems").Scan(&problems); err != nil {
			return contextutils.WrapError(err, "failed to count problems")
		}
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions").Scan(&submissions); err != nil {
			return contextutils.WrapError(err, "failed to count submissions")
		}
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_histories").Scan(&histories); err != nil {
			return contextutils.WrapError(err, "failed to count chat histories")
		}

		logger.Info(ctx, "Database statistics", map[string]interface{}{
			"total_users":       len(users),
			"total_problems":    problems,
			"total_submissions": submissions,
			"chat_histories":    histories,
			"database":          "PostgreSQL",
			"status":            "Connected",
		})

		return nil
	}
}
