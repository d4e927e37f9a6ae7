// Package publishers decodes the publish section of a release definition.
// PublisherConfig is a discriminated union on "type"; the As methods convert
// it to the concrete publisher settings.
package publishers

import (
	"encoding/json"
	"fmt"
)

// PublisherConfig is a raw publisher definition.
type PublisherConfig map[string]any

// PyPIPublisher uploads to a PyPI compatible index.
type PyPIPublisher struct {
	Type          string `json:"type"`
	RepositoryURL string `json:"repositoryURL"`
	Username      string `json:"username"`
	// Token is a secret reference.
	Token string `json:"token"`
}

// S3Publisher uploads to an S3 bucket.
type S3Publisher struct {
	Type     string `json:"type"`
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// OCIPublisher pushes to an OCI registry.
type OCIPublisher struct {
	Type       string `json:"type"`
	Repository string `json:"repository"`
	Username   string `json:"username,omitempty"`
	// Password is a secret reference.
	Password  string `json:"password,omitempty"`
	PlainHTTP bool   `json:"plainHTTP"`
}

// Type returns the discriminator value for this PublisherConfig.
// Returns an empty string if the type field is missing or not a string.
func (pc PublisherConfig) Type() string {
	if t, ok := pc["type"].(string); ok {
		return t
	}
	return ""
}

// AsPyPI attempts to convert the PublisherConfig to a PyPIPublisher.
func (pc PublisherConfig) AsPyPI() (*PyPIPublisher, bool) {
	if pc.Type() != "pypi" {
		return nil, false
	}

	// Re-marshal and unmarshal to convert map[string]any to PyPIPublisher
	data, err := json.Marshal(pc)
	if err != nil {
		return nil, false
	}

	var pypi PyPIPublisher
	if err := json.Unmarshal(data, &pypi); err != nil {
		return nil, false
	}
	return &pypi, true
}

// AsS3 attempts to convert the PublisherConfig to an S3Publisher.
func (pc PublisherConfig) AsS3() (*S3Publisher, bool) {
	if pc.Type() != "s3" {
		return nil, false
	}

	data, err := json.Marshal(pc)
	if err != nil {
		return nil, false
	}

	var s3 S3Publisher
	if err := json.Unmarshal(data, &s3); err != nil {
		return nil, false
	}
	return &s3, true
}

// AsOCI attempts to convert the PublisherConfig to an OCIPublisher.
func (pc PublisherConfig) AsOCI() (*OCIPublisher, bool) {
	if pc.Type() != "oci" {
		return nil, false
	}

	data, err := json.Marshal(pc)
	if err != nil {
		return nil, false
	}

	var oci OCIPublisher
	if err := json.Unmarshal(data, &oci); err != nil {
		return nil, false
	}
	return &oci, true
}

// Validate checks if the PublisherConfig has a valid type discriminator.
// An empty PublisherConfig means publishing is disabled and is valid.
func (pc PublisherConfig) Validate() error {
	if len(pc) == 0 {
		return nil
	}
	typ := pc.Type()
	if typ == "" {
		return fmt.Errorf("publisher config missing 'type' field")
	}

	switch typ {
	case "pypi", "s3", "oci":
		return nil
	default:
		return fmt.Errorf("unknown publisher type: %q", typ)
	}
}
