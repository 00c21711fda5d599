// Package style defines the shared wire-format types for acme-chroma.
//
// A Chunk is the unit of formatted output: a run of source text carrying one
// Tag.  PaletteEntry and StyleRun are the acme-styles compositor types: the
// tag definitions a rendering surface applies, and rune-offset spans naming
// them.  Format and ParsePalette convert to and from the compositor's text
// format so that palettes can be published or loaded from a styles file.
package style

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Tag names a visual style on a rendering surface.  Tags are the join key
// between formatter output and a palette.
type Tag string

// NoStyle is the canonical tag for text with no style entry.  Surfaces render
// it with their base attributes.
const NoStyle Tag = "none"

// Safe reports whether t can be embedded in the chunk stream and in the
// compositor wire format: non-empty, no whitespace, no ':' delimiter.
func (t Tag) Safe() bool {
	if t == "" {
		return false
	}
	for _, r := range t {
		if r == ':' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Chunk is a maximal run of adjacent source text sharing one resolved tag.
type Chunk struct {
	Tag  Tag
	Text string
}

// Concat returns the text of chunks joined in order.
func Concat(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// PaletteEntry is a named visual style definition.
type PaletteEntry struct {
	Name      Tag    // e.g. "chroma.Keyword"
	FontName  string // absolute font path, or ""
	FG        string // "#rrggbb", or ""
	BG        string // "#rrggbb", or ""
	Bold      bool
	Italic    bool
	Underline bool
}

// Equal reports whether e and b have identical visual properties (all fields
// except Name).
func (e PaletteEntry) Equal(b PaletteEntry) bool {
	return e.FontName == b.FontName &&
		e.FG == b.FG &&
		e.BG == b.BG &&
		e.Bold == b.Bold &&
		e.Italic == b.Italic &&
		e.Underline == b.Underline
}

// StyleRun is a named style span.  Start and End are rune offsets; End is
// exclusive.
type StyleRun struct {
	Name  Tag
	Start int
	End   int // exclusive
}

// Format serialises palette entries and style runs into the acme-styles wire
// format.
func Format(palette []PaletteEntry, runs []StyleRun) string {
	var sb strings.Builder
	for _, e := range palette {
		writePaletteLine(&sb, e)
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "%d %d %s\n", r.Start, r.End-r.Start, r.Name)
	}
	return sb.String()
}

func writePaletteLine(sb *strings.Builder, e PaletteEntry) {
	fmt.Fprintf(sb, ":%s", e.Name)
	if e.FontName != "" {
		fmt.Fprintf(sb, " font=%s", e.FontName)
	}
	if e.FG != "" {
		fmt.Fprintf(sb, " fg=%s", e.FG)
	}
	if e.BG != "" {
		fmt.Fprintf(sb, " bg=%s", e.BG)
	}
	if e.Bold {
		sb.WriteString(" bold")
	}
	if e.Italic {
		sb.WriteString(" italic")
	}
	if e.Underline {
		sb.WriteString(" underline")
	}
	sb.WriteByte('\n')
}

// Parse reads palette lines (":name prop...") and run lines
// ("start length name") from content.  Blank lines and '#' comments are
// skipped, as are lines that do not parse.
func Parse(content string) ([]PaletteEntry, []StyleRun) {
	var palette []PaletteEntry
	var runs []StyleRun
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if e, ok := parsePaletteLine(line[1:]); ok {
				palette = append(palette, e)
			}
			continue
		}
		if r, ok := parseRunLine(line); ok {
			runs = append(runs, r)
		}
	}
	return palette, runs
}

// ParsePalette returns only the palette entries of content.
func ParsePalette(content string) []PaletteEntry {
	p, _ := Parse(content)
	return p
}

// parsePaletteLine parses "name [prop ...]" (after the leading ':' is stripped).
func parsePaletteLine(line string) (PaletteEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return PaletteEntry{}, false
	}
	e := PaletteEntry{Name: Tag(fields[0])}
	for _, tok := range fields[1:] {
		switch {
		case tok == "bold":
			e.Bold = true
		case tok == "italic":
			e.Italic = true
		case tok == "underline":
			e.Underline = true
		case strings.HasPrefix(tok, "font="):
			e.FontName = tok[5:]
		case strings.HasPrefix(tok, "fg="):
			e.FG = tok[3:]
		case strings.HasPrefix(tok, "bg="):
			e.BG = tok[3:]
		}
	}
	return e, true
}

// parseRunLine parses "start length name".
func parseRunLine(line string) (StyleRun, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return StyleRun{}, false
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return StyleRun{}, false
	}
	length, err := strconv.Atoi(fields[1])
	if err != nil || length <= 0 {
		return StyleRun{}, false
	}
	return StyleRun{Name: Tag(fields[2]), Start: start, End: start + length}, true
}
