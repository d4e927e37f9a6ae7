package config

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	schema "github.com/input-output-hk/catalyst-forge-release/schemas"
)

var (
	schemaOnce sync.Once
	schemaSrc  []byte
	schemaErr  error
)

func schemaSource() ([]byte, error) {
	schemaOnce.Do(func() {
		schemaSrc, schemaErr = schema.CueModule.ReadFile(schema.SchemaFile)
	})
	return schemaSrc, schemaErr
}

func load(ctx context.Context, filesystem fs.Filesystem, path string, opts LoadOptions) (*Config, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeConfigLoadFailed, "failed to read release definition", map[string]interface{}{
			"path": path,
		})
	}
	return parse(ctx, path, data, opts)
}

func parse(ctx context.Context, name string, data []byte, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := unify(name, data)
	if err != nil {
		return nil, err
	}

	var rc schema.ReleaseConfig
	if err := value.Decode(&rc); err != nil {
		return nil, errors.WrapWithContext(cueError(err), errors.CodeConfigDecodeFailed, "failed to decode release definition", map[string]interface{}{
			"path": name,
		})
	}

	cfg := &Config{ReleaseConfig: &rc, Path: name}
	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// unify compiles data and unifies it with the #Release definition. The
// result is concrete: every required field is set and defaults are applied.
func unify(name string, data []byte) (cue.Value, error) {
	src, err := schemaSource()
	if err != nil {
		return cue.Value{}, errors.Wrap(err, errors.CodeInternal, "embedded schema is missing")
	}

	cctx := cuecontext.New()
	schemaValue := cctx.CompileBytes(src, cue.Filename(schema.SchemaFile))
	if err := schemaValue.Err(); err != nil {
		return cue.Value{}, errors.Wrap(cueError(err), errors.CodeInternal, "embedded schema does not compile")
	}
	root := schemaValue.LookupPath(cue.ParsePath(schema.RootDefinition))

	user := cctx.CompileBytes(data, cue.Filename(name))
	if err := user.Err(); err != nil {
		return cue.Value{}, errors.WrapWithContext(cueError(err), errors.CodeConfigLoadFailed, "failed to parse release definition", map[string]interface{}{
			"path": name,
		})
	}

	value := root.Unify(user)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, errors.WrapWithContext(cueError(err), errors.CodeInvalidConfig, "release definition does not match the schema", map[string]interface{}{
			"path": name,
		})
	}
	return value, nil
}

// cueError flattens a CUE error list into one error with positions.
func cueError(err error) error {
	return stderrors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
}
