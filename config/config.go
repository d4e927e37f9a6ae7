// Package config loads release definitions written in CUE.
//
// A definition is unified with the embedded #Release schema, which fills in
// defaults and rejects unknown or ill-typed fields, then decoded into
// schema.ReleaseConfig and checked for what CUE cannot express.
//
// # Basic Usage
//
//	fsys := billy.NewBaseOSFS()
//	cfg, err := config.Load(ctx, fsys, config.DefaultPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := cfg.VersionStore()
//	spec, err := cfg.BuildSpec()
package config

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-release/fs"
	schema "github.com/input-output-hk/catalyst-forge-release/schemas"
)

// DefaultPath is where a repository keeps its release definition.
const DefaultPath = ".forge/release.cue"

// Config is a loaded release definition.
type Config struct {
	*schema.ReleaseConfig

	// Path is the file the definition was read from.
	Path string
}

// LoadOptions configures loading.
type LoadOptions struct {
	// SkipValidation disables the checks run after decoding. Schema
	// constraints are always enforced.
	SkipValidation bool
}

// Load reads, decodes and validates the definition at path.
func Load(ctx context.Context, filesystem fs.Filesystem, path string) (*Config, error) {
	return load(ctx, filesystem, path, LoadOptions{})
}

// LoadWithOptions is Load with custom options.
func LoadWithOptions(ctx context.Context, filesystem fs.Filesystem, path string, opts LoadOptions) (*Config, error) {
	return load(ctx, filesystem, path, opts)
}

// Parse decodes and validates a definition held in memory. name is used in
// error messages.
func Parse(ctx context.Context, name string, data []byte) (*Config, error) {
	return parse(ctx, name, data, LoadOptions{})
}
