// Package config holds the runtime options recognized by the protocol core
// and their YAML file representation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-git/go-gitwire/plumbing/hash"
)

// Options is the runtime configuration surface of the core.
type Options struct {
	// HashKind selects the identifier length and trailer size: "sha1" or
	// "sha256".
	HashKind string `yaml:"hash_kind"`

	// MemLimit is the byte cap on resolved-base retention during pack
	// decode; exceeding it triggers the spill cache. Zero means unbounded.
	MemLimit int64 `yaml:"mem_limit"`

	// CacheDir is the directory for spilled bases.
	CacheDir string `yaml:"cache_dir"`

	// CleanCache removes the cache directory content at session end.
	CleanCache bool `yaml:"clean_cache"`

	// WorkerThreads bounds parallelism for delta work; zero means the
	// number of available CPUs.
	WorkerThreads int `yaml:"worker_threads"`

	// WindowSize is the encoder delta-search window; zero disables delta
	// compression.
	WindowSize int `yaml:"window_size"`

	// ChannelBuffer is the back-pressure bound on inter-stage channels.
	ChannelBuffer int `yaml:"channel_buffer"`
}

// Default returns the options used when no configuration is provided.
func Default() *Options {
	return &Options{
		HashKind:      hash.SHA1.String(),
		CacheDir:      "./.cache_temp",
		CleanCache:    true,
		WindowSize:    10,
		ChannelBuffer: 32,
	}
}

// Load reads options from a YAML file, over the defaults.
func Load(path string) (*Options, error) {
	o := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	if _, err := o.Format(); err != nil {
		return nil, err
	}

	return o, nil
}

// Format returns the object format selected by HashKind.
func (o *Options) Format() (hash.Format, error) {
	if o.HashKind == "" {
		return hash.SHA1, nil
	}

	return hash.ParseFormat(o.HashKind)
}
