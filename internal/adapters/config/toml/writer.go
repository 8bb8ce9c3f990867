package toml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configFileMode  = 0o600
	configDirMode   = 0o700
	tempFilePattern = ".config-*.toml.tmp"
)

var ErrConfigExists = errors.New("config file already exists")

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.Mutex{}
)

func Encode(cfg Config) ([]byte, error) {
	if cfg.Version == 0 {
		cfg.Version = currentSchemaVersion
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return data, nil
}

// Write replaces path with cfg through a temp file and rename. Unless
// overwrite is set, an existing file is left alone and ErrConfigExists is
// returned.
func Write(path string, cfg Config, overwrite bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	mu := lockForPath(absPath)
	mu.Lock()
	defer mu.Unlock()

	if !overwrite {
		if _, err := os.Stat(absPath); err == nil {
			return fmt.Errorf("%s: %w", absPath, ErrConfigExists)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config file: %w", err)
		}
	}

	data, err := Encode(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(absPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}

	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}

	if err := os.Rename(tempName, absPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(absPath, configFileMode); err != nil {
		return fmt.Errorf("chmod config file: %w", err)
	}

	return nil
}

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	pathLockMap[path] = mu
	return mu
}
