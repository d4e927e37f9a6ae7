package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	schema "github.com/input-output-hk/catalyst-forge-release/schemas"
)

// Validate checks what the schema cannot express: schema compatibility,
// branch and duration values and the publisher discriminator.
//
// All problems are reported together.
func (c *Config) Validate() error {
	if c == nil || c.ReleaseConfig == nil {
		return errors.New(errors.CodeInvalidInput, "release definition is nil")
	}

	var problems []string

	compatible, err := schema.IsCompatible(c.ForgeVersion)
	switch {
	case err != nil:
		problems = append(problems, err.Error())
	case !compatible:
		problems = append(problems, fmt.Sprintf("forgeVersion %s is not compatible with schema %s", c.ForgeVersion, schema.SchemaVersion))
	}

	if c.Branches.Mutable == c.Branches.Stable {
		problems = append(problems, fmt.Sprintf("branches.mutable and branches.stable are both %q", c.Branches.Stable))
	}

	if _, err := time.ParseDuration(c.Build.RetryDelay); err != nil {
		problems = append(problems, fmt.Sprintf("build.retryDelay: %v", err))
	}

	if err := c.Publish.Validate(); err != nil {
		problems = append(problems, "publish: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.WrapWithContext(
			fmt.Errorf("%s", strings.Join(problems, "; ")),
			errors.CodeInvalidConfig,
			"release definition validation failed",
			map[string]interface{}{"path": c.Path},
		)
	}
	return nil
}
