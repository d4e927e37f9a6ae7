package schema

import "embed"

// CueModule contains the embedded CUE schema. release.cue defines #Release,
// the root of a release definition.
//
//go:embed release.cue
var CueModule embed.FS

// SchemaFile is the name of the schema file in CueModule.
const SchemaFile = "release.cue"

// RootDefinition is the CUE definition user files are unified with.
const RootDefinition = "#Release"
