// SPDX-License-Identifier: MPL-2.0

package signer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

const (
	// DebugKeystoreName is the file name of the shared debug keystore.
	DebugKeystoreName = "debug.keystore"
	// DebugPassword is the store and key password of the debug keystore.
	DebugPassword = "android"
	// DebugAlias is the key alias inside the debug keystore.
	DebugAlias = "androiddebugkey"
	// DebugDName is the distinguished name of the generated debug certificate.
	DebugDName = "CN=Android Debug,O=Android,C=US"

	debugKeySize      = 2048
	debugValidityDays = 10000
)

type (
	// KeystoreRepository provides the signing key for Android artifacts.
	KeystoreRepository struct {
		runner  toolexec.Runner
		keytool string
		dir     string
		logger  *log.Logger
	}

	// KeystoreOption configures a KeystoreRepository.
	KeystoreOption func(*KeystoreRepository)
)

// WithKeystoreDir overrides the directory holding the debug keystore
// (default ~/.android).
func WithKeystoreDir(dir string) KeystoreOption {
	return func(r *KeystoreRepository) { r.dir = dir }
}

// WithKeytoolPath sets the keytool binary.
func WithKeytoolPath(path string) KeystoreOption {
	return func(r *KeystoreRepository) { r.keytool = path }
}

// WithKeystoreLogger sets the logger.
func WithKeystoreLogger(l *log.Logger) KeystoreOption {
	return func(r *KeystoreRepository) { r.logger = l }
}

// NewKeystoreRepository creates a repository.
func NewKeystoreRepository(runner toolexec.Runner, opts ...KeystoreOption) *KeystoreRepository {
	r := &KeystoreRepository{runner: runner, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DebugKey describes the debug key in dir.
func DebugKey(dir string) tools.Keystore {
	return tools.Keystore{
		Path:     filepath.Join(dir, DebugKeystoreName),
		Password: DebugPassword,
		Alias:    DebugAlias,
	}
}

// Dir returns the directory holding the debug keystore.
func (r *KeystoreRepository) Dir() (string, error) {
	if r.dir != "" {
		return r.dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".android"), nil
}

// LoadOrCreate returns key when it is set, failing if its keystore file is
// missing. Otherwise it returns the debug key, generating the keystore first
// if it does not exist yet. Concurrent creators are tolerated: the key is
// generated into a temporary file and linked into place, and losing that
// race counts as success.
func (r *KeystoreRepository) LoadOrCreate(ctx context.Context, key *tools.Keystore) (tools.Keystore, error) {
	if key != nil && key.Path != "" {
		if _, err := os.Stat(key.Path); err != nil {
			return tools.Keystore{}, &types.MissingInputError{Kind: "keystore", Path: key.Path}
		}
		return *key, nil
	}

	dir, err := r.Dir()
	if err != nil {
		return tools.Keystore{}, err
	}
	debug := DebugKey(dir)
	if _, err := os.Stat(debug.Path); err == nil {
		return debug, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tools.Keystore{}, err
	}
	tmp, err := os.CreateTemp(dir, DebugKeystoreName+".*.tmp")
	if err != nil {
		return tools.Keystore{}, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// keytool refuses to write into an existing empty file.
	if err := os.Remove(tmpPath); err != nil {
		return tools.Keystore{}, err
	}
	defer os.Remove(tmpPath)

	gen := debug
	gen.Path = tmpPath
	r.logger.Info("generating debug keystore", "path", debug.Path)
	cmd := tools.KeytoolGenKey{
		Path:         r.keytool,
		Key:          gen,
		DName:        DebugDName,
		KeySize:      debugKeySize,
		ValidityDays: debugValidityDays,
	}.Command()
	if _, err := r.runner.Run(ctx, cmd); err != nil {
		return tools.Keystore{}, err
	}

	if err := os.Link(tmpPath, debug.Path); err != nil && !errors.Is(err, fs.ErrExist) {
		return tools.Keystore{}, fmt.Errorf("install debug keystore: %w", err)
	}
	return debug, nil
}

// Fingerprint returns the SHA-256 certificate fingerprint of key.
func (r *KeystoreRepository) Fingerprint(ctx context.Context, key tools.Keystore) (string, error) {
	res, err := r.runner.Run(ctx, tools.KeytoolList{Path: r.keytool, Key: key}.Command())
	if err != nil {
		return "", err
	}
	fps := ParseFingerprints(res.Stdout)
	if len(fps) == 0 {
		return "", fmt.Errorf("keytool reported no SHA-256 fingerprint for %s in %s", key.Alias, key.Path)
	}
	return fps[0], nil
}
