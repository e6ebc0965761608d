package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider supplies credentials to the object client. Get returns
// ErrNotConfigured when nothing has been stored yet.
type Provider interface {
	Get(ctx context.Context) (Credentials, error)
	Set(ctx context.Context, creds Credentials) error
}

// StoreProvider keeps credentials as a JSON document in a KVStore.
type StoreProvider struct {
	store KVStore
}

// NewStoreProvider returns a Provider backed by store.
func NewStoreProvider(store KVStore) *StoreProvider {
	return &StoreProvider{store: store}
}

func (p *StoreProvider) Get(ctx context.Context) (Credentials, error) {
	raw, err := p.store.GetItem(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return Credentials{}, ErrNotConfigured
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func (p *StoreProvider) Set(ctx context.Context, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := p.store.SetItem(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credentials.
func (p *StoreProvider) Clear(ctx context.Context) error {
	return p.store.RemoveItem(ctx, StorageKey)
}

// Static always returns the same credentials. Useful in tests and for
// credentials passed on the command line.
type Static Credentials

func (s Static) Get(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

func (s Static) Set(context.Context, Credentials) error {
	return ErrReadOnly
}

// ChainProvider reads from the first provider holding complete credentials
// and writes to the first provider that accepts the write.
type ChainProvider struct {
	providers []Provider
}

// Chain returns a ChainProvider over providers, in priority order.
func Chain(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) Get(ctx context.Context) (Credentials, error) {
	for _, p := range c.providers {
		creds, err := p.Get(ctx)
		if errors.Is(err, ErrNotConfigured) {
			continue
		}
		if err != nil {
			return Credentials{}, err
		}
		if creds.Validate() == nil {
			return creds, nil
		}
	}
	return Credentials{}, ErrNotConfigured
}

func (c *ChainProvider) Set(ctx context.Context, creds Credentials) error {
	for _, p := range c.providers {
		err := p.Set(ctx, creds)
		if errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	return ErrReadOnly
}
