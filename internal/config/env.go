package config

import (
	"context"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvProvider reads credentials from TEMPBIN_* environment variables, and
// optionally from a file (.env, yaml, json or toml) that the environment
// overrides. It cannot persist credentials.
type EnvProvider struct {
	File string
}

func (p EnvProvider) Get(context.Context) (Credentials, error) {
	var creds Credentials

	var err error
	if p.File != "" {
		err = cleanenv.ReadConfig(p.File, &creds)
	} else {
		err = cleanenv.ReadEnv(&creds)
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read environment: %w", err)
	}

	if creds == (Credentials{}) {
		return Credentials{}, ErrNotConfigured
	}
	return creds, nil
}

func (p EnvProvider) Set(context.Context, Credentials) error {
	return ErrReadOnly
}
