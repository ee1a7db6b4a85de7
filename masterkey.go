package credx

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

const base64Prefix = "base64:"

// MasterKey is the process-wide secret from which the field cipher key is
// derived. Its bytes are unexported and never printed.
type MasterKey struct {
	b []byte
}

// NewMasterKey copies b into a MasterKey.
func NewMasterKey(b []byte) (MasterKey, error) {
	if len(b) < MinMasterKeyLength {
		return MasterKey{}, fmt.Errorf("%w: master key must be at least %d bytes, got %d",
			ErrMasterKeyUnavailable, MinMasterKeyLength, len(b))
	}
	if bytes.Count(b, []byte{0}) == len(b) {
		return MasterKey{}, fmt.Errorf("%w: master key is uninitialized (all zeros)", ErrMasterKeyUnavailable)
	}
	return MasterKey{b: bytes.Clone(b)}, nil
}

// ParseMasterKey accepts either raw text or "base64:" followed by standard
// base64. Surrounding whitespace is ignored.
func ParseMasterKey(s string) (MasterKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MasterKey{}, fmt.Errorf("%w: empty master key", ErrMasterKeyUnavailable)
	}
	if rest, ok := strings.CutPrefix(s, base64Prefix); ok {
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return MasterKey{}, fmt.Errorf("%w: decode base64 master key: %w", ErrMasterKeyUnavailable, err)
		}
		return NewMasterKey(b)
	}
	return NewMasterKey([]byte(s))
}

// IsZero reports whether the key holds no material.
func (k MasterKey) IsZero() bool { return len(k.b) == 0 }

func (k MasterKey) material() []byte { return k.b }

func (k MasterKey) String() string { return "MasterKey([REDACTED])" }

func (k MasterKey) GoString() string { return k.String() }

// MasterKey makes a loaded key usable wherever a MasterKeyProvider is expected.
func (k MasterKey) MasterKey(context.Context) (MasterKey, error) {
	if k.IsZero() {
		return MasterKey{}, ErrMasterKeyUnavailable
	}
	return k, nil
}

// EnvMasterKeySource reads the master key from an environment variable.
type EnvMasterKeySource struct {
	// Var defaults to EnvMasterKey.
	Var string
}

func (s EnvMasterKeySource) MasterKey(context.Context) (MasterKey, error) {
	name := s.Var
	if name == "" {
		name = EnvMasterKey
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return MasterKey{}, fmt.Errorf("%w: %s is not set", ErrMasterKeyUnavailable, name)
	}
	return ParseMasterKey(v)
}

// FileMasterKeySource reads the master key from a file, typically a mounted secret.
type FileMasterKeySource struct {
	Path string
}

func (s FileMasterKeySource) MasterKey(context.Context) (MasterKey, error) {
	if s.Path == "" {
		return MasterKey{}, fmt.Errorf("%w: master key file path is empty", ErrMasterKeyUnavailable)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return MasterKey{}, fmt.Errorf("%w: read master key file: %w", ErrMasterKeyUnavailable, err)
	}
	return ParseMasterKey(string(b))
}
