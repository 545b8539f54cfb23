package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ageniuscoder/caseline/backend/internal/auth"
	"github.com/ageniuscoder/caseline/backend/internal/config"
	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/ageniuscoder/caseline/backend/internal/storage/postgres"
	"github.com/ageniuscoder/caseline/backend/internal/storage/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// database is what both SQL backends expose to the commands.
type database interface {
	Migrate() error
	Close() error
	Store() *storage.SQLStore
}

// loadConfig reads an optional .env file and then the environment.
func loadConfig() (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}
	return config.Load()
}

func openDatabase(cfg config.Config) (database, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.New(cfg.PostgresDsn)
	default:
		return sqlite.New(cfg.SQLITEDsn)
	}
}

func buildServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start the hub: the /ws socket endpoint, the /api HTTP fallback,
/auth/login, /metrics and /health. Shuts down on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply the schema before serving")
	return cmd
}

func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func buildTokenCmd() *cobra.Command {
	var ttl int
	cmd := &cobra.Command{
		Use:     "token <user-id>",
		Short:   "Mint a bearer token for a user id",
		Example: `  JWT_SECRET=dev caseline token 3f1c2a9e-...`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			if ttl <= 0 {
				ttl = cfg.JWTTTLMin
			}
			tok, err := auth.NewToken(cfg.JWTSecret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Token lifetime in minutes (defaults to JWT_TTL_MIN)")
	return cmd
}

func buildUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(buildUserCreateCmd())
	return cmd
}

func buildUserCreateCmd() *cobra.Command {
	var email, name, role, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Example: `  caseline user create --email ana@example.com --name Ana --role specialist --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.Role(role)
			switch r {
			case models.RoleUser, models.RoleSpecialist, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			ident, err := db.Store().CreateUser(cmd.Context(), storage.NewUser{
				Email:        strings.ToLower(email),
				PasswordHash: hash,
				DisplayName:  name,
				Role:         r,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ident.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "user, specialist or admin")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	return cmd
}
