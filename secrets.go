/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

func newSecret() string {
	return secretPrefix + uuid.NewString()
}

// bootstrap prepares the snapshot directory and makes sure a secret file
// exists, writing a freshly generated token when there is none.
func bootstrap(cfg *Config) error {
	if err := os.MkdirAll(cfg.dumps, 0o755); err != nil {
		return fmt.Errorf("create dump directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.secrets), 0o700); err != nil {
		return fmt.Errorf("create secret directory: %w", err)
	}

	_, err := os.Stat(cfg.secrets)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read secret file: %w", err)
	}

	secret := newSecret()

	if err := os.WriteFile(cfg.secrets, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("write secret file: %w", err)
	}

	// Printed regardless of --verbose.
	fmt.Printf("%s | START: Created %s with publisher secret %s\n", time.Now().Format(logDate), cfg.secrets, secret)

	return nil
}
