package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/postadmin"
	"github.com/eringen/postadmin/logger"
	"github.com/eringen/postadmin/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "hash-password":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: postadmin hash-password <password>")
			os.Exit(1)
		}
		err = runHashPassword(os.Args[2])
	case "token":
		subject := "cli"
		if len(os.Args) > 2 {
			subject = os.Args[2]
		}
		err = runToken(subject)
	case "category", "user":
		if len(os.Args) < 4 || os.Args[2] != "add" {
			fmt.Fprintf(os.Stderr, "Usage: postadmin %s add <name>\n", cmd)
			os.Exit(1)
		}
		err = runAdd(cmd, os.Args[3])
	case "version":
		fmt.Printf("postadmin %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`postadmin - blog post admin panel built with Go, Echo, and templ

Usage:
  postadmin [command] [arguments]

Commands:
  serve                  Start the admin server (default)
  hash-password <pass>   Print a bcrypt hash for ADMIN_PASSWORD_HASH
  token [subject]        Print a 24h API token signed with API_JWT_SECRET
  category add <name>    Create a category
  user add <name>        Create an author
  version                Print the postadmin version
  help                   Show this help message`)
}

func runServe() error {
	cfg := postadmin.LoadConfig()

	log, err := logger.New(logger.Options{Mode: cfg.Log, Level: cfg.LogLevel, Dir: cfg.LogDir, File: "postadmin.log"})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	warnings, err := cfg.Validate()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	app := postadmin.New(cfg, views.Default(), postadmin.WithLogger(log))
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		return err
	}
	return nil
}

func runHashPassword(pass string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

func runToken(subject string) error {
	cfg := postadmin.LoadConfig()
	if cfg.APIJWTSecret == "" {
		return errors.New("API_JWT_SECRET is not set")
	}
	token, err := postadmin.IssueAPIToken(cfg.APIJWTSecret, subject, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runAdd(kind, name string) error {
	cfg := postadmin.LoadConfig()
	store, err := postadmin.OpenStore(cfg.DatabaseDriver, cfg.DatabasePath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if kind == "category" {
		c, err := store.CreateCategory(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("category %d %s\n", c.ID, c.Name)
		return nil
	}
	u, err := store.CreateUser(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("user %d %s\n", u.ID, u.Name)
	return nil
}
