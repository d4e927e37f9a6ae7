package schema

import "github.com/input-output-hk/catalyst-forge-release/schemas/publishers"

// ReleaseConfig is the decoded #Release definition.
type ReleaseConfig struct {
	ForgeVersion string                     `json:"forgeVersion"`
	Project      string                     `json:"project"`
	Repository   string                     `json:"repository"`
	Remote       string                     `json:"remote"`
	Branches     Branches                   `json:"branches"`
	Version      VersionFile                `json:"version"`
	Author       *Author                    `json:"author,omitempty"`
	Build        Build                      `json:"build"`
	Hosting      Hosting                    `json:"hosting"`
	Publish      publishers.PublisherConfig `json:"publish,omitempty"`
	Notify       *Notifier                  `json:"notify,omitempty"`
}

// Branches names the development and release branches.
type Branches struct {
	Mutable string `json:"mutable"`
	Stable  string `json:"stable"`
}

// VersionFile locates the tracked version identifier.
type VersionFile struct {
	// Format is "plain", or "block" (alias "python") for a Python version block.
	Format string `json:"format"`
	File   string `json:"file,omitempty"`
}

// Author signs release commits and tags.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Build describes the build command.
type Build struct {
	Command    []string          `json:"command"`
	Env        map[string]string `json:"env,omitempty"`
	Artifacts  []string          `json:"artifacts"`
	Retries    int64             `json:"retries"`
	RetryDelay string            `json:"retryDelay"`
}

// Hosting selects how the release record is created.
type Hosting struct {
	// Type is "git-tag" or "github".
	Type    string `json:"type"`
	Owner   string `json:"owner,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Token   string `json:"token,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
}

// Notifier selects the chat service that announces the release.
type Notifier struct {
	// Type is "matrix" or "slack".
	Type       string `json:"type"`
	Homeserver string `json:"homeserver,omitempty"`
	Room       string `json:"room,omitempty"`
	Token      string `json:"token,omitempty"`
	Webhook    string `json:"webhook,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Template   string `json:"template,omitempty"`
}

// Destination returns the room or channel messages are sent to.
func (n *Notifier) Destination() string {
	if n == nil {
		return ""
	}
	if n.Type == "matrix" {
		return n.Room
	}
	return n.Channel
}
