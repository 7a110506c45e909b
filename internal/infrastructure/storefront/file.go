package storefront

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dmstore/dmstore/internal/domain/conversation"
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".storefront-*.toml.tmp"
)

// ErrNotConfigured is returned when no storefront file exists yet.
var ErrNotConfigured = errors.New("storefront is not configured")

// Decode parses a TOML storefront document.
func Decode(data []byte) (conversation.Storefront, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return conversation.Storefront{}, fmt.Errorf("decode storefront: %w", err)
	}
	return doc.Storefront()
}

// Encode renders a storefront as TOML.
func Encode(sf conversation.Storefront) ([]byte, error) {
	data, err := toml.Marshal(FromStorefront(sf))
	if err != nil {
		return nil, fmt.Errorf("encode storefront: %w", err)
	}
	return data, nil
}

// File is the storefront definition loaded once at startup and optionally replaced at runtime.
type File struct {
	path string

	mu      sync.RWMutex
	current *conversation.Storefront
}

// Open reads the storefront at path. A missing file leaves the storefront unconfigured.
func Open(path string) (*File, error) {
	f := &File{path: filepath.Clean(path)}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read storefront file: %w", err)
	}
	sf, err := Decode(data)
	if err != nil {
		return nil, err
	}
	f.current = &sf
	return f, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Current returns a copy of the loaded storefront.
func (f *File) Current() (conversation.Storefront, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return conversation.Storefront{}, ErrNotConfigured
	}
	return *f.current, nil
}

// Replace validates sf, writes it atomically and makes it current.
// Running listeners keep the storefront they started with.
func (f *File) Replace(sf conversation.Storefront) error {
	sf.ApplyDefaults()
	if err := sf.Validate(); err != nil {
		return err
	}
	data, err := Encode(sf)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.current = &sf
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create storefront directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp storefront file: %w", err)
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
		return fmt.Errorf("write temp storefront file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp storefront file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp storefront file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace storefront file: %w", err)
	}
	cleanup = false
	return nil
}
