package config

import (
	"fmt"
	"net/url"
)

// StorageTarget holds the connection parameters of the active storage
// backend for the duration of one write. It is never persisted.
type StorageTarget struct {
	Backend   string
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	SSLMode   string
	SkipStore bool
}

// ConnString builds a PostgreSQL connection string for the target.
func (t *StorageTarget) ConnString() string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(t.Password)

	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		t.User,
		escapedPassword,
		t.Host,
		t.Port,
		t.Database,
		sslMode,
	)
}

// DiscoverBackend resolves the storage backend to write to. A named
// selector looks up exactly that backend; an empty selector
// auto-detects the single enabled backend. Returns nil when nothing
// usable is configured.
func (c *Config) DiscoverBackend(selector string) *StorageTarget {
	if selector != "" {
		backend, ok := c.Backends[selector]
		if !ok || !backend.Enabled {
			return nil
		}
		return target(selector, backend)
	}

	var found *StorageTarget
	for name, backend := range c.Backends {
		if !backend.Enabled {
			continue
		}
		if found != nil {
			// More than one active backend and no selector given.
			return nil
		}
		found = target(name, backend)
	}
	return found
}

func target(name string, b BackendConfig) *StorageTarget {
	return &StorageTarget{
		Backend:   name,
		Host:      b.Host,
		Port:      b.Port,
		User:      b.User,
		Password:  b.Password,
		Database:  b.Name,
		SSLMode:   b.SSLMode,
		SkipStore: b.SkipStore,
	}
}
