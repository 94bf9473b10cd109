// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"lukechampine.com/blake3"
)

// stateFile is the fingerprint file kept next to the .flat outputs.
const stateFile = "fingerprints.toml"

type (
	// state maps a resource path relative to the res directory to its entry.
	state struct {
		Version int              `toml:"version"`
		Files   map[string]entry `toml:"files"`
	}

	entry struct {
		Hash string `toml:"hash"`
		Flat string `toml:"flat"`
	}
)

const stateVersion = 1

func loadState(outDir string) *state {
	s := &state{Version: stateVersion, Files: make(map[string]entry)}
	data, err := os.ReadFile(filepath.Join(outDir, stateFile))
	if err != nil {
		return s
	}
	var loaded state
	if err := toml.Unmarshal(data, &loaded); err != nil || loaded.Version != stateVersion || loaded.Files == nil {
		// Unreadable state forces a full recompile.
		return s
	}
	return &loaded
}

func (s *state) save(outDir string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode fingerprints: %w", err)
	}
	tmp := filepath.Join(outDir, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write fingerprints: %w", err)
	}
	return os.Rename(tmp, filepath.Join(outDir, stateFile))
}

// Fingerprint returns the hex BLAKE3-256 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
