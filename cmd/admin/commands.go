package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stockpot/internal/accounts"
	"stockpot/internal/auth"
	"stockpot/internal/config"
	"stockpot/internal/database"
	"stockpot/internal/recipes"
)

const generatedPasswordBytes = 24

// dbOptions holds the connection flags shared by every command. Empty values
// fall back to the environment.
type dbOptions struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

func newRootCommand() *cobra.Command {
	opts := &dbOptions{}

	cmd := &cobra.Command{
		Use:           "stockpot-admin",
		Short:         "Administrative tasks for stockpot accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Host, "db-host", "", "database host (default DATABASE_HOST)")
	cmd.PersistentFlags().IntVar(&opts.Port, "db-port", 0, "database port (default DATABASE_PORT)")
	cmd.PersistentFlags().StringVar(&opts.Name, "db-name", "", "database name (default POSTGRES_DB)")
	cmd.PersistentFlags().StringVar(&opts.User, "db-user", "", "database user (default POSTGRES_USER)")
	cmd.PersistentFlags().StringVar(&opts.Password, "db-password", "", "database password (default POSTGRES_PASSWORD)")
	cmd.PersistentFlags().StringVar(&opts.SSLMode, "db-sslmode", "", "database sslmode (default DATABASE_SSLMODE)")

	cmd.AddCommand(newCreateUserCommand(opts))
	cmd.AddCommand(newDeleteUserCommand(opts))

	return cmd
}

func newCreateUserCommand(opts *dbOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with a generated password",
		Long:  "Create a user and its empty profile. The generated password is printed once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openAccounts(opts)
			if err != nil {
				return err
			}
			return createUser(cmd.Context(), svc, username, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username of the new account")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newDeleteUserCommand(opts *dbOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete a user with their profile and recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openAccounts(opts)
			if err != nil {
				return err
			}
			return deleteUser(cmd.Context(), svc, username, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username of the account to delete")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func createUser(ctx context.Context, svc *accounts.Service, username string, out io.Writer) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("missing required flag: --username")
	}

	password, err := generateRandomPassword(generatedPasswordBytes)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := svc.Register(ctx, username, hashed); err != nil {
		if errors.Is(err, accounts.ErrUsernameTaken) {
			return fmt.Errorf("user %q already exists", username)
		}
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(out, "created user %s\n", username)
	fmt.Fprintf(out, "password: %s\n", password)
	fmt.Fprintln(out, "the password is shown only once")
	return nil
}

func deleteUser(ctx context.Context, svc *accounts.Service, username string, out io.Writer) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("missing required flag: --username")
	}

	if err := svc.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, recipes.ErrNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	fmt.Fprintf(out, "deleted user %s\n", username)
	return nil
}

func openAccounts(opts *dbOptions) (*accounts.Service, error) {
	dbCfg, err := loadDatabaseConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return accounts.NewService(db, slog.Default()), nil
}

// loadDatabaseConfig overlays the flags onto the environment settings.
func loadDatabaseConfig(opts *dbOptions) (config.DatabaseConfig, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return config.DatabaseConfig{}, err
	}

	if v := strings.TrimSpace(opts.Host); v != "" {
		cfg.Host = v
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if v := strings.TrimSpace(opts.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(opts.User); v != "" {
		cfg.User = v
	}
	if opts.Password != "" {
		cfg.Password = opts.Password
	}
	if v := strings.TrimSpace(opts.SSLMode); v != "" {
		cfg.SSLMode = v
	}

	if err := config.ValidateDatabase(cfg); err != nil {
		return config.DatabaseConfig{}, err
	}
	return cfg, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = generatedPasswordBytes
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
