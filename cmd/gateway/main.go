package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bicrea/gateway/internal/app"
	"github.com/bicrea/gateway/internal/config"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run dispatches to the serve, migrate, or create-user commands.
func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 && args[0] == "create-user" {
		return runCreateUser(ctx, args[1:])
	}
	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(ctx, args[1:])
	}
	return runServe(ctx, args)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 8318, "server port")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	return app.RunServer(ctx, appCfg, *port)
}

func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gateway migrate", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

func runCreateUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gateway create-user", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	email := fs.String("email", "", "email address for the new account")
	password := fs.String("password", "", "password for the new account")
	mfa := fs.Bool("mfa", false, "generate a TOTP secret for the account")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	appCfg, err := loadAppConfig(*cfgPath)
	if err != nil {
		return err
	}
	secret, errCreate := app.CreateUser(ctx, appCfg, *email, *password, *mfa)
	if errCreate != nil {
		return errCreate
	}
	log.Infof("created user %s", strings.ToLower(strings.TrimSpace(*email)))
	if secret != "" {
		// Printed exactly once; the secret is not recoverable later.
		fmt.Printf("TOTP secret: %s\n", secret)
	}
	return nil
}

func loadAppConfig(cfgPath string) (config.AppConfig, error) {
	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
	}
	return appCfg, nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
