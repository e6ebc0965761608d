package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/femidj/tempbin/internal/emulator"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/femidj/tempbin/internal/sigv4"
	"github.com/femidj/tempbin/internal/storage"
	"golang.org/x/sync/errgroup"
)

// keyPair is the single credential the emulator accepts. Flags override
// the environment.
type keyPair struct {
	AccessKeyID     string `env:"TEMPBIN_ACCESS_KEY_ID" env-default:"tempbin"`
	SecretAccessKey string `env:"TEMPBIN_SECRET_ACCESS_KEY" env-default:"tempbin-secret"`
}

func loadKeyPair() (keyPair, error) {
	var keys keyPair
	if err := cleanenv.ReadEnv(&keys); err != nil {
		return keyPair{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return keys, nil
}

func Run(ctx context.Context) error {

	keys, err := loadKeyPair()
	if err != nil {
		return err
	}

	listen := flag.String("listen", "9000", "HTTP listen port")
	dataDir := flag.String("data-dir", "./data", "directory to store object data")
	accessKey := flag.String("access-key", keys.AccessKeyID, "accepted access key id")
	secretKey := flag.String("secret-key", keys.SecretAccessKey, "accepted secret access key")
	tlsPort := flag.Int("tls-listen", 8443, "HTTPS listen port")
	crtFile := flag.String("tls-cert", "", "TLS certificate file; HTTPS is disabled when empty")
	keyFile := flag.String("tls-key", "", "TLS private key file")
	debug := flag.Bool("debug", false, "enable debug logging")

	flag.Parse()

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           level,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	// Ensure data directory is absolute for easier debugging.
	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	server, err := emulator.NewServer(emulator.Config{
		Engine: storage.NewLocalFileStorage(filepath.Join(absDataDir, "objects")),
		DBPath: filepath.Join(absDataDir, "metadata.db"),
		Credentials: sigv4.Credentials{
			AccessKeyID:     *accessKey,
			SecretAccessKey: *secretKey,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create emulator: %w", err)
	}

	defer server.Close()

	router := server.Handler()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listen),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	httpsServer := &http.Server{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		Addr:              fmt.Sprintf(":%d", *tlsPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		return httpsServer.Shutdown(context.Background())
	})

	eg.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(context.Background())
	})

	eg.Go(func() error {
		if *crtFile == "" || *keyFile == "" {
			slog.Debug("Skipping HTTPS service because no certificate was provided")
			return nil
		}

		slog.Info("Starting emulator HTTPS server", "port", *tlsPort)
		err := httpsServer.ListenAndServeTLS(*crtFile, *keyFile)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting emulator HTTP server", "port", *listen, "access_key", *accessKey)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Emulator started", "data_dir", absDataDir)
	return eg.Wait()

}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Emulator exited with error", "error", err)
		os.Exit(1)
	}
}
