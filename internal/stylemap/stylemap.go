// Package stylemap translates chroma token types into surface tags and tags
// into presentation attributes.
//
// A Mapper is built once per theme and is immutable afterwards, so one Mapper
// may be shared by every session using that theme.  Colours are absolute;
// fonts are expressed as a FontDelta applied to the surface's base font,
// because only the surface knows its base family and size.
package stylemap

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"go.uber.org/multierr"

	"github.com/cptaffe/acme-chroma/style"
)

// Sentinel lookup errors.
var (
	ErrUnknownTheme = errors.New("unknown theme")
	ErrUnknownTag   = errors.New("unknown tag")
)

// tagPrefix namespaces syntax tags away from overlay tags such as "search".
const tagPrefix = "chroma."

// maxDepth bounds the parent walk.  chroma token types are at most three
// levels deep (category, subcategory, type) under the root.
const maxDepth = 8

// Font is a rendering surface's base font.
type Font struct {
	Family string
	Size   int
	Bold   bool
	Italic bool
}

// FontDelta is a font change relative to a base font.
type FontDelta struct {
	Family string // replaces the base family when non-empty
	Bold   bool
	Italic bool
}

// Apply returns base with d applied.
func (d FontDelta) Apply(base Font) Font {
	f := base
	if d.Family != "" {
		f.Family = d.Family
	}
	f.Bold = f.Bold || d.Bold
	f.Italic = f.Italic || d.Italic
	return f
}

// Attributes is the presentation of one style entry.  Empty colours mean
// "inherit from the surface".
type Attributes struct {
	FG        string // "#rrggbb", or ""
	BG        string // "#rrggbb", or ""
	Underline bool
	Font      FontDelta
}

// Theme is a set of (classification, attributes) pairs.
type Theme struct {
	Name    string
	Entries map[chroma.TokenType]Attributes
}

// Mapper resolves classifications to tags and tags to attributes.
type Mapper struct {
	name  string
	tags  map[chroma.TokenType]style.Tag
	attrs map[style.Tag]Attributes
}

// New builds a Mapper for theme.  The theme's entries are copied.
func New(theme Theme) *Mapper {
	m := &Mapper{
		name:  theme.Name,
		tags:  make(map[chroma.TokenType]style.Tag, len(theme.Entries)),
		attrs: make(map[style.Tag]Attributes, len(theme.Entries)),
	}
	for tt, a := range theme.Entries {
		tag := TagName(tt)
		m.tags[tt] = tag
		m.attrs[tag] = a
	}
	return m
}

// Name returns the theme name.
func (m *Mapper) Name() string { return m.name }

// Resolve walks tt's ancestors until one with a style entry is found.
func (m *Mapper) Resolve(tt chroma.TokenType) (chroma.TokenType, bool) {
	for range maxDepth {
		if _, ok := m.tags[tt]; ok {
			return tt, true
		}
		parent := tt.Parent()
		if parent == tt {
			break
		}
		tt = parent
	}
	return 0, false
}

// TagFor returns the tag for tt: its own, its nearest styled ancestor's, or
// style.NoStyle.
func (m *Mapper) TagFor(tt chroma.TokenType) style.Tag {
	if r, ok := m.Resolve(tt); ok {
		return m.tags[r]
	}
	return style.NoStyle
}

// AttributesFor looks up tag.  ok is false for style.NoStyle and for tags
// outside the theme; such text is left unstyled.
func (m *Mapper) AttributesFor(tag style.Tag) (Attributes, bool) {
	a, ok := m.attrs[tag]
	return a, ok
}

// Tags returns every tag in the theme, sorted.
func (m *Mapper) Tags() []style.Tag {
	tags := make([]style.Tag, 0, len(m.attrs))
	for t := range m.attrs {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Palette returns surface tag definitions with font deltas applied to base.
func (m *Mapper) Palette(base Font) []style.PaletteEntry {
	out := make([]style.PaletteEntry, 0, len(m.attrs))
	for _, tag := range m.Tags() {
		a := m.attrs[tag]
		f := a.Font.Apply(base)
		e := style.PaletteEntry{
			Name:      tag,
			FG:        a.FG,
			BG:        a.BG,
			Bold:      f.Bold,
			Italic:    f.Italic,
			Underline: a.Underline,
		}
		if a.Font.Family != "" {
			e.FontName = f.Family
		}
		out = append(out, e)
	}
	return out
}

// TagName returns the tag for tt.  The mapping is one-to-one; see
// Classification for the inverse.
func TagName(tt chroma.TokenType) style.Tag {
	return style.Tag(tagPrefix + tt.String())
}

var (
	byTagOnce sync.Once
	byTag     map[style.Tag]chroma.TokenType
)

// Classification returns the token type named by tag.
func Classification(tag style.Tag) (chroma.TokenType, bool) {
	byTagOnce.Do(func() {
		byTag = make(map[style.Tag]chroma.TokenType, len(chroma.StandardTypes))
		for tt := range chroma.StandardTypes {
			byTag[TagName(tt)] = tt
		}
	})
	tt, ok := byTag[tag]
	return tt, ok
}

// FromChroma converts a chroma style into a Theme.  A background equal to
// the style's page background is dropped so that tags only paint text that
// differs from the page.
func FromChroma(s *chroma.Style) Theme {
	page := s.Get(chroma.Background).Background
	entries := make(map[chroma.TokenType]Attributes)
	for _, tt := range s.Types() {
		if tt == chroma.Background {
			continue
		}
		e := s.Get(tt)
		a := Attributes{
			Underline: e.Underline == chroma.Yes,
			Font: FontDelta{
				Bold:   e.Bold == chroma.Yes,
				Italic: e.Italic == chroma.Yes,
			},
		}
		if e.Colour.IsSet() {
			a.FG = e.Colour.String()
		}
		if e.Background.IsSet() && e.Background != page {
			a.BG = e.Background.String()
		}
		entries[tt] = a
	}
	return Theme{Name: s.Name, Entries: entries}
}

// FromPalette builds a Theme from palette entries named by tag, as found in
// an acme-styles styles file.  Entries with unknown tags are skipped and
// reported together in the returned error; the Theme holds the rest.
func FromPalette(name string, palette []style.PaletteEntry) (Theme, error) {
	var err error
	entries := make(map[chroma.TokenType]Attributes, len(palette))
	for _, e := range palette {
		tt, ok := Classification(e.Name)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownTag, e.Name))
			continue
		}
		entries[tt] = Attributes{
			FG:        e.FG,
			BG:        e.BG,
			Underline: e.Underline,
			Font: FontDelta{
				Family: e.FontName,
				Bold:   e.Bold,
				Italic: e.Italic,
			},
		}
	}
	return Theme{Name: name, Entries: entries}, err
}

// Lookup returns the registered chroma style called name as a Theme.
func Lookup(name string) (Theme, error) {
	s, ok := styles.Registry[name]
	if !ok {
		return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	return FromChroma(s), nil
}

// Names returns the registered chroma style names.
func Names() []string {
	return styles.Names()
}
