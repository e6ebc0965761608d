package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/objectstore"
	"golang.org/x/sync/errgroup"
)

// maxInFlight bounds concurrent uploads and deletes.
const maxInFlight = 4

func (a *app) configure(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("configure", flag.ContinueOnError)
	fs.SetOutput(stderr)
	account := fs.String("account", "", "Cloudflare account id")
	accessKey := fs.String("access-key", "", "R2 access key id")
	secret := fs.String("secret", "", "R2 secret access key")
	bucket := fs.String("bucket", "", "bucket name")
	publicURL := fs.String("public-url", "", "optional public base URL for retrieval links")
	reset := fs.Bool("clear", false, "remove stored credentials")

	if err := fs.Parse(args); err != nil {
		return err
	}

	provider := config.NewStoreProvider(a.store)

	if *reset {
		if err := provider.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Credentials removed")
		return nil
	}

	creds := config.Credentials{
		AccountID:       *account,
		AccessKeyID:     *accessKey,
		SecretAccessKey: *secret,
		BucketName:      *bucket,
		PublicURL:       *publicURL,
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("-account, -access-key, -secret and -bucket are required: %w", err)
	}

	if err := provider.Set(ctx, creds); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Saved credentials for bucket %s\n", creds.BucketName)
	return nil
}

func (a *app) upload(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keepName := fs.Bool("keep-name", false, "use the file name as the object key instead of an anonymized one")
	contentType := fs.String("content-type", "", "content type for every file (default: guessed from extension)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("upload: no files given")
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxInFlight)

	for _, file := range fs.Args() {
		eg.Go(func() error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			ct := *contentType
			if ct == "" {
				ct = mime.TypeByExtension(filepath.Ext(file))
			}

			res, err := a.client.Upload(ctx, objectstore.UploadInput{
				Body:        data,
				FileName:    filepath.Base(file),
				ContentType: ct,
				Anonymize:   !*keepName,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", file, res.Key, res.URL)
			return nil
		})
	}

	return eg.Wait()
}

func (a *app) delete(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("delete: no keys given")
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxInFlight)

	for _, key := range fs.Args() {
		eg.Go(func() error {
			if err := a.client.Delete(ctx, key); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(a.stdout, "Deleted %s\n", key)
			return nil
		})
	}

	return eg.Wait()
}

func (a *app) url(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("url", flag.ContinueOnError)
	fs.SetOutput(stderr)
	expires := fs.Duration("expires", objectstore.DefaultExpiry, "how long the URL stays valid (whole seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("url: exactly one key required")
	}

	link, err := a.client.PresignGet(ctx, fs.Arg(0), *expires)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, link)
	return nil
}
