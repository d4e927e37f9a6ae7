package changelog

import (
	"fmt"
	"strings"
)

// EmptyNotice is rendered when a release has no changelog entries.
const EmptyNotice = "No notable changes."

// Markdown renders the changelog. The output is stable for a given input
// and always ends with a single newline.
func (c *Changelog) Markdown() string {
	var b strings.Builder
	if c.Title != "" {
		fmt.Fprintf(&b, "## %s\n\n", c.Title)
	}

	if c.Len() == 0 {
		b.WriteString(EmptyNotice + "\n")
		return b.String()
	}

	first := true
	for _, section := range SectionOrder {
		entries := c.Sections[section]
		if len(entries) == 0 {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false

		fmt.Fprintf(&b, "### %s\n\n", section)
		for _, e := range entries {
			b.WriteString("- ")
			if e.Scope != "" {
				fmt.Fprintf(&b, "**%s:** ", e.Scope)
			}
			if section == SectionBreaking && e.Type != "" {
				fmt.Fprintf(&b, "%s: ", e.Type)
			}
			fmt.Fprintf(&b, "%s (%s)\n", e.Description, e.ShortHash())
		}
	}
	return b.String()
}
