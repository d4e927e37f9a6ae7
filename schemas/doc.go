// Package schema holds the CUE schema of the release definition and the Go
// types it decodes into.
//
// The schema is embedded (CueModule) and unified with the user's definition
// by the config package, which supplies defaults and rejects unknown fields.
// Publisher settings are a discriminated union on the "type" field; see the
// publishers subpackage.
//
// A minimal definition:
//
//	forgeVersion: "0.1.0"
//	project:      "ovos-core"
//	repository:   "https://github.com/OpenVoiceOS/ovos-core.git"
//	version: {format: "block", file: "ovos_core/version.py"}
//	build: command: ["python", "-m", "build"]
//	publish: {type: "pypi", token: "env://PYPI_TOKEN"}
package schema
