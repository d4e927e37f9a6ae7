// Package changelog turns the commits of a release range into Markdown
// release notes. Commit messages are parsed as Conventional Commits and
// grouped by kind; anything that does not parse lands in "Other Changes".
package changelog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"

	"github.com/input-output-hk/catalyst-forge-release/git"
)

// Section is a heading in the rendered changelog.
type Section string

// Sections in render order.
const (
	SectionBreaking Section = "Breaking Changes"
	SectionFeatures Section = "Features"
	SectionFixes    Section = "Bug Fixes"
	SectionPerf     Section = "Performance"
	SectionOther    Section = "Other Changes"
)

// SectionOrder is the order sections are rendered in.
var SectionOrder = []Section{SectionBreaking, SectionFeatures, SectionFixes, SectionPerf, SectionOther}

// Range selects the commits reachable from To and not from From. An empty
// From selects the whole history of To.
type Range struct {
	From string
	To   string
}

// String renders the range in git's two-dot notation.
func (r Range) String() string {
	if r.From == "" {
		return r.To
	}
	return r.From + ".." + r.To
}

// Entry is a single changelog line.
type Entry struct {
	Hash        string
	Type        string
	Scope       string
	Description string
	Breaking    bool
}

// ShortHash returns the abbreviated commit hash.
func (e Entry) ShortHash() string {
	if len(e.Hash) > 7 {
		return e.Hash[:7]
	}
	return e.Hash
}

// Changelog is the grouped set of entries for one release.
type Changelog struct {
	Title    string
	Range    Range
	Sections map[Section][]Entry
}

// Len returns the total number of entries.
func (c *Changelog) Len() int {
	n := 0
	for _, entries := range c.Sections {
		n += len(entries)
	}
	return n
}

// CommitSource lists commits in a range, newest first.
type CommitSource interface {
	CommitsBetween(ctx context.Context, from, to string) ([]git.Commit, error)
}

// Generator builds changelogs from a CommitSource.
type Generator struct {
	source  CommitSource
	logger  *slog.Logger
	exclude []string
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithExcludedPrefixes drops commits whose subject starts with any prefix.
// The orchestrator uses this to keep its own version commits out.
func WithExcludedPrefixes(prefixes ...string) Option {
	return func(g *Generator) {
		g.exclude = append(g.exclude, prefixes...)
	}
}

// NewGenerator returns a Generator reading commits from source.
func NewGenerator(source CommitSource, opts ...Option) *Generator {
	g := &Generator{
		source: source,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate collects and groups the commits in rng. Merge commits are
// skipped. Entries within a section are ordered oldest first.
func (g *Generator) Generate(ctx context.Context, title string, rng Range) (*Changelog, error) {
	if rng.To == "" {
		return nil, fmt.Errorf("changelog range %q has no end commit", rng)
	}

	commits, err := g.source.CommitsBetween(ctx, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits in %s: %w", rng, err)
	}

	cl := &Changelog{Title: title, Range: rng, Sections: map[Section][]Entry{}}
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		if c.IsMerge() || g.excluded(c.Subject()) {
			continue
		}
		entry := Parse(c.Hash, c.Message)
		section := SectionFor(entry)
		cl.Sections[section] = append(cl.Sections[section], entry)
	}

	g.logger.Debug("generated changelog",
		"range", rng.String(),
		"commits", len(commits),
		"entries", cl.Len())
	return cl, nil
}

func (g *Generator) excluded(subject string) bool {
	for _, prefix := range g.exclude {
		if prefix != "" && strings.HasPrefix(subject, prefix) {
			return true
		}
	}
	return false
}

// Parse interprets a commit message as a Conventional Commit. Messages that
// do not parse produce an entry with an empty Type and the subject as
// description.
func Parse(hash, message string) Entry {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	subject = strings.TrimSpace(subject)
	entry := Entry{Hash: hash, Description: subject}

	cc := parseConventional(strings.TrimSpace(message))
	if cc == nil {
		// A malformed body must not hide a valid header.
		cc = parseConventional(subject)
	}
	if cc == nil || cc.Type == "" || cc.Description == "" {
		return entry
	}

	entry.Type = strings.ToLower(cc.Type)
	entry.Description = cc.Description
	entry.Breaking = cc.IsBreakingChange()
	if cc.Scope != nil {
		entry.Scope = *cc.Scope
	}
	return entry
}

func parseConventional(message string) *conventionalcommits.ConventionalCommit {
	machine := parser.NewMachine(
		parser.WithTypes(conventionalcommits.TypesConventional),
		parser.WithBestEffort(),
	)
	msg, _ := machine.Parse([]byte(message))
	if msg == nil {
		return nil
	}
	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok || cc == nil {
		return nil
	}
	return cc
}

// SectionFor returns the section an entry belongs to.
func SectionFor(e Entry) Section {
	if e.Breaking {
		return SectionBreaking
	}
	switch e.Type {
	case "feat":
		return SectionFeatures
	case "fix":
		return SectionFixes
	case "perf":
		return SectionPerf
	default:
		return SectionOther
	}
}
