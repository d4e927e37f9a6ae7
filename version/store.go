package version

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/input-output-hk/catalyst-forge-release/fs"
)

// Store reads and writes the version identifier tracked in a repository file.
type Store interface {
	// Path is the file location relative to the repository root.
	Path() string
	// Decode extracts the version from file content.
	Decode(content []byte) (Version, error)
	// Encode returns content with the version replaced by v.
	Encode(content []byte, v Version) ([]byte, error)
}

// ErrMalformedFile is returned when a version file cannot be interpreted.
var ErrMalformedFile = errors.New("malformed version file")

// Read loads the version from s.Path() in fsys.
func Read(fsys fs.Filesystem, s Store) (Version, error) {
	content, err := fsys.ReadFile(s.Path())
	if err != nil {
		return Version{}, fmt.Errorf("read %s: %w", s.Path(), err)
	}
	return s.Decode(content)
}

// Write replaces the version in s.Path() in fsys with v.
func Write(fsys fs.Filesystem, s Store, v Version) error {
	content, err := fsys.ReadFile(s.Path())
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Path(), err)
	}
	updated, err := s.Encode(content, v)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(s.Path(), updated, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path(), err)
	}
	return nil
}

// PlainStore keeps the version as the only content of a file.
type PlainStore struct {
	File string
}

// DefaultPlainFile is the PlainStore file name used when none is configured.
const DefaultPlainFile = "VERSION"

// Path implements Store.
func (p PlainStore) Path() string {
	if p.File == "" {
		return DefaultPlainFile
	}
	return p.File
}

// Decode implements Store.
func (p PlainStore) Decode(content []byte) (Version, error) {
	s := strings.TrimSpace(string(content))
	if s == "" {
		return Version{}, fmt.Errorf("%w: %s is empty", ErrMalformedFile, p.Path())
	}
	return Parse(s)
}

// Encode implements Store. A trailing newline is always written.
func (p PlainStore) Encode(_ []byte, v Version) ([]byte, error) {
	return []byte(v.String() + "\n"), nil
}

// Python version block markers.
const (
	BlockStart = "# START_VERSION_BLOCK"
	BlockEnd   = "# END_VERSION_BLOCK"
)

// noAlpha is the VERSION_ALPHA value of a stable version.
const noAlpha = "None"

var blockLine = regexp.MustCompile(`^(\s*VERSION_(MAJOR|MINOR|BUILD|ALPHA)\s*=\s*)([^\s#]+)(.*)$`)

// BlockStore keeps the version in a Python module between BlockStart and
// BlockEnd as VERSION_MAJOR, VERSION_MINOR, VERSION_BUILD and VERSION_ALPHA
// assignments. VERSION_ALPHA holds K of the alphaK marker, or None for a
// stable version. Everything outside the assignments is preserved.
type BlockStore struct {
	File string
}

// DefaultBlockFile is the BlockStore file name used when none is configured.
const DefaultBlockFile = "version.py"

// Path implements Store.
func (b BlockStore) Path() string {
	if b.File == "" {
		return DefaultBlockFile
	}
	return b.File
}

// Decode implements Store.
func (b BlockStore) Decode(content []byte) (Version, error) {
	fields := map[string]string{}
	err := b.scan(content, func(line string, m []string) string {
		fields[m[2]] = m[3]
		return line
	})
	if err != nil {
		return Version{}, err
	}

	var parts [3]uint64
	for i, key := range []string{"MAJOR", "MINOR", "BUILD"} {
		raw, ok := fields[key]
		if !ok {
			return Version{}, fmt.Errorf("%w: %s has no VERSION_%s", ErrMalformedFile, b.Path(), key)
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: VERSION_%s=%q", ErrMalformedFile, key, raw)
		}
		parts[i] = n
	}

	alpha := -1
	if raw, ok := fields["ALPHA"]; ok && raw != noAlpha {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 0 {
			return Version{}, fmt.Errorf("%w: VERSION_ALPHA=%q", ErrMalformedFile, raw)
		}
		alpha = k
	}
	return New(parts[0], parts[1], parts[2], alpha), nil
}

// Encode implements Store.
func (b BlockStore) Encode(content []byte, v Version) ([]byte, error) {
	alpha := noAlpha
	if v.IsPrerelease() {
		alpha = strconv.Itoa(v.Alpha())
	}
	values := map[string]string{
		"MAJOR": strconv.FormatUint(v.Major(), 10),
		"MINOR": strconv.FormatUint(v.Minor(), 10),
		"BUILD": strconv.FormatUint(v.Patch(), 10),
		"ALPHA": alpha,
	}

	var out bytes.Buffer
	seen := map[string]bool{}
	err := b.scan(content, func(_ string, m []string) string {
		seen[m[2]] = true
		return m[1] + values[m[2]] + m[4]
	}, &out)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"MAJOR", "MINOR", "BUILD", "ALPHA"} {
		if !seen[key] {
			return nil, fmt.Errorf("%w: %s has no VERSION_%s", ErrMalformedFile, b.Path(), key)
		}
	}
	return out.Bytes(), nil
}

// scan visits every assignment inside the version block. fn returns the
// replacement line; when out is given every line is copied to it with its
// original terminator.
func (b BlockStore) scan(content []byte, fn func(line string, m []string) string, out ...*bytes.Buffer) error {
	var w *bytes.Buffer
	if len(out) > 0 {
		w = out[0]
	}

	inBlock, found, closed := false, false, false
	for _, raw := range bytes.SplitAfter(content, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		body := bytes.TrimSuffix(raw, []byte("\n"))
		body = bytes.TrimSuffix(body, []byte("\r"))
		eol := raw[len(body):]

		line := string(body)
		switch trimmed := strings.TrimSpace(line); {
		case trimmed == BlockStart:
			inBlock, found = true, true
		case trimmed == BlockEnd:
			if inBlock {
				closed = true
			}
			inBlock = false
		case inBlock:
			if m := blockLine.FindStringSubmatch(line); m != nil {
				line = fn(line, m)
			}
		}
		if w != nil {
			w.WriteString(line)
			w.Write(eol)
		}
	}
	if !found || !closed {
		return fmt.Errorf("%w: %s has no complete version block", ErrMalformedFile, b.Path())
	}
	return nil
}

// NewStore returns the Store for a configured format ("plain" or "python").
//
//nolint:ireturn // callers select the implementation at runtime
func NewStore(format, file string) (Store, error) {
	switch format {
	case "", "plain":
		return PlainStore{File: file}, nil
	case "block", "python":
		return BlockStore{File: file}, nil
	default:
		return nil, fmt.Errorf("unknown version file format %q", format)
	}
}
