/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package access

import (
	"os"
	"strings"
)

// Verifier decides whether a presented publisher secret is currently valid.
type Verifier interface {
	Verify(secret string) bool
}

// SecretFile checks secrets against a whitespace-separated token list. The
// file is read on every call so rotated tokens apply without a restart.
type SecretFile struct {
	path string
}

func NewSecretFile(path string) *SecretFile {
	return &SecretFile{path: path}
}

func (f *SecretFile) Path() string {
	return f.path
}

// Verify reports false for an empty secret or an unreadable file.
func (f *SecretFile) Verify(secret string) bool {
	if secret == "" {
		return false
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}

	for _, known := range strings.Fields(string(data)) {
		if known == secret {
			return true
		}
	}

	return false
}
