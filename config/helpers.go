package config

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/executor"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/version"
)

// VersionStore returns the store for the configured version file.
//
//nolint:ireturn // stores are selected at runtime
func (c *Config) VersionStore() (version.Store, error) {
	store, err := version.NewStore(c.Version.Format, c.Version.File)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid version section")
	}
	return store, nil
}

// BuildSpec returns the build section as an executor.BuildSpec.
func (c *Config) BuildSpec() (executor.BuildSpec, error) {
	delay, err := time.ParseDuration(c.Build.RetryDelay)
	if err != nil {
		return executor.BuildSpec{}, errors.Wrap(err, errors.CodeInvalidConfig, "invalid build.retryDelay")
	}
	return executor.BuildSpec{
		Command:    c.Build.Command,
		Env:        c.Build.Env,
		Artifacts:  c.Build.Artifacts,
		Retries:    int(c.Build.Retries),
		RetryDelay: delay,
	}, nil
}

// Signature returns the configured commit author, or the zero value when
// none is set.
func (c *Config) Signature() git.Signature {
	if c.ReleaseConfig.Author == nil {
		return git.Signature{}
	}
	return git.Signature{Name: c.ReleaseConfig.Author.Name, Email: c.ReleaseConfig.Author.Email}
}

// NotifyChannel returns the room or channel for notifications.
func (c *Config) NotifyChannel() string {
	return c.Notify.Destination()
}

// NotifyTemplate returns the configured message template, if any.
func (c *Config) NotifyTemplate() string {
	if c.Notify == nil {
		return ""
	}
	return c.Notify.Template
}
