package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/objectstore"
)

const usage = `Usage: tempbin [global flags] <command> [flags] [args]

Commands:
  configure   store R2 credentials
  upload      upload files and print retrieval URLs
  delete      delete objects by key
  url         print a retrieval URL for a key

Global flags:
`

type app struct {
	stdout io.Writer
	store  *config.SQLiteStore
	client *objectstore.Client
}

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tempbin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	dbPath := fs.String("db", defaultDBPath(), "SQLite file holding stored credentials")
	envFile := fs.String("config", "", "optional .env, yaml, json or toml file with TEMPBIN_* settings")
	endpoint := fs.String("endpoint", "", "send requests to this base URL instead of the R2 account endpoint")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	level := log.WarnLevel
	if *debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(stderr, log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})

	slog.SetDefault(slog.New(handler))

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	store, err := config.OpenSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Environment settings take precedence over stored credentials.
	provider := config.Chain(
		config.EnvProvider{File: *envFile},
		config.NewStoreProvider(store),
	)

	var opts []objectstore.Option
	if *endpoint != "" {
		opts = append(opts, objectstore.WithEndpoint(*endpoint))
	}

	a := &app{
		stdout: stdout,
		store:  store,
		client: objectstore.New(provider, opts...),
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "configure":
		return a.configure(ctx, rest, stderr)
	case "upload":
		return a.upload(ctx, rest, stderr)
	case "delete":
		return a.delete(ctx, rest, stderr)
	case "url":
		return a.url(ctx, rest, stderr)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tempbin.db"
	}
	return filepath.Join(dir, "tempbin", "config.db")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("tempbin failed", "error", err)
		}
		os.Exit(1)
	}
}
