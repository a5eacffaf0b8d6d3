package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avatarctic/tenancy-engine/configs"
	"github.com/avatarctic/tenancy-engine/internal/application/services"
	"github.com/avatarctic/tenancy-engine/internal/bootstrap"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
)

// loadConfig is swapped in tests.
var loadConfig = configs.Load

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenancyctl",
		Short:         "Operate a tenancy engine deployment",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMigrateCmd(), newSweepCmd(), newTokenCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(cfg *configs.Config, database *db.Database) error {
				if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withDatabase(func(cfg *configs.Config, database *db.Database) error {
				if err := database.MigrateDown(cfg.Database.MigrationsPath, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s).\n", steps)
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(cfg *configs.Config, database *db.Database) error {
				v, dirty, err := database.MigrationVersion(cfg.Database.MigrationsPath)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

func withDatabase(fn func(cfg *configs.Config, database *db.Database) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	return fn(cfg, database)
}

func newSweepCmd() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire every active invite code past its expiry, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("sweep needs a shared store, STORE_DRIVER is memory")
			}
			logger := bootstrap.NewLogger(cfg.Log)
			database, redisClient, err := bootstrap.Connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			engine, err := bootstrap.New(cfg, logger, database, redisClient)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runSweep(ctx, cmd, engine.Sweeper, logger)
		},
	}
	sweepCmd.Flags().Duration("timeout", 5*time.Minute, "give up after this long")
	return sweepCmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, sweeper ports.ExpirySweeper, logger *logrus.Logger) error {
	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		if logger != nil {
			logger.WithFields(logrus.Fields{"expired": n}).WithError(err).Error("sweep failed")
		}
		return fmt.Errorf("sweep stopped after expiring %d code(s): %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Expired %d invite code(s).\n", n)
	return nil
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorFlag, _ := cmd.Flags().GetString("actor")
			roleFlag, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			actorID := uuid.New()
			if actorFlag != "" {
				parsed, err := uuid.Parse(actorFlag)
				if err != nil {
					return fmt.Errorf("invalid --actor: %w", err)
				}
				actorID = parsed
			}
			role := auth.Role(roleFlag)
			if !role.IsValid() {
				return fmt.Errorf("--role must be %s or %s", auth.RoleLandlord, auth.RoleTenant)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.JWT.DevTokenTTL
			}
			identity := services.NewIdentityService(services.IdentityConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, ports.SystemClock{})
			return printToken(cmd, identity, actorID, role, ttl)
		},
	}
	tokenCmd.Flags().String("actor", "", "actor uuid (random when empty)")
	tokenCmd.Flags().String("role", string(auth.RoleLandlord), "landlord or tenant")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (defaults to JWT_DEV_TOKEN_TTL)")
	return tokenCmd
}

func printToken(cmd *cobra.Command, identity ports.IdentityService, actorID uuid.UUID, role auth.Role, ttl time.Duration) error {
	token, err := identity.Issue(actorID, role, ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "actor: %s\nrole:  %s\n", actorID, role)
	fmt.Fprintln(out, token)
	return nil
}
