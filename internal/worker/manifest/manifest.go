// Package manifest describes which assets the worker precaches and under
// which generation name.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultCacheName = "story-app-cache-v3"

var defaultAssets = []string{
	"/",
	"/index.html",
	"/app.bundle.js",
	"/manifest.json",
	"/icons/icon-192x192.png",
	"/icons/icon-512x512.png",
}

var ErrInvalid = errors.New("invalid manifest")

type Manifest struct {
	CacheName string `yaml:"cache_name"`
	// Fallback documents served to navigations while offline, tried in order.
	Fallback []string `yaml:"fallback"`
	Assets   []string `yaml:"assets"`
}

func Default() Manifest {
	return Manifest{
		CacheName: DefaultCacheName,
		Fallback:  []string{"/index.html", "/"},
		Assets:    append([]string(nil), defaultAssets...),
	}
}

// Parse reads YAML, filling unset fields from Default.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	def := Default()
	if m.CacheName == "" {
		m.CacheName = def.CacheName
	}
	if len(m.Fallback) == 0 {
		m.Fallback = def.Fallback
	}
	if len(m.Assets) == 0 {
		m.Assets = def.Assets
	}
	return m, m.Validate()
}

// Load reads the manifest at path; an empty path yields Default.
func Load(path string) (Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

func (m Manifest) Validate() error {
	if strings.Contains(m.CacheName, "/") {
		return fmt.Errorf("%w: cache_name %q contains '/'", ErrInvalid, m.CacheName)
	}
	for _, p := range append(append([]string(nil), m.Assets...), m.Fallback...) {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: path %q must start with '/'", ErrInvalid, p)
		}
	}
	return nil
}
