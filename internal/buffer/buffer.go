// Package buffer is an editable multi-line text document with per-character
// tags.
//
// Each character carries at most one syntax tag, plus any number of named
// overlays (selection, search matches) kept as rune-offset runs that move with
// edits.  Every mutation raises one change notification to subscribers; Group
// coalesces a batch into one.  Mutations are recorded for Undo and Redo,
// except those made inside Retag.
//
// A Buffer is not safe for concurrent use.
package buffer

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cptaffe/acme-chroma/internal/runs"
	"github.com/cptaffe/acme-chroma/style"
)

const selOverlay = "sel"

// line holds one line of text.  tags parallels text; eol is the tag of the
// newline ending the line and is unused on the last line.
type line struct {
	text []rune
	tags []style.Tag
	eol  style.Tag
}

// Buffer is a tagged text document.
type Buffer struct {
	lines  []line
	caret  Pos
	top    int
	left   int
	height int

	defs     map[style.Tag]style.PaletteEntry
	overlays map[string][]style.StyleRun

	subs    map[int]func(Change)
	nextSub int
	depth   int
	pending Kind
	version uint64

	hist history
}

// New returns a buffer holding text, untagged, with an empty history.
func New(text string) *Buffer {
	b := &Buffer{
		lines:    []line{{}},
		top:      1,
		defs:     make(map[style.Tag]style.PaletteEntry),
		overlays: make(map[string][]style.StyleRun),
		subs:     make(map[int]func(Change)),
		hist:     history{limit: -1},
	}
	b.caret = Pos{Line: 1}
	if text != "" {
		b.insert(Pos{Line: 1}, []style.Chunk{{Text: text}})
		b.caret = Pos{Line: 1}
	}
	return b
}

// Version is the number of changes delivered so far.
func (b *Buffer) Version() uint64 { return b.version }

// Lines returns the number of lines; an empty buffer has one.
func (b *Buffer) Lines() int { return len(b.lines) }

// LineLen returns the length of line n in runes.
func (b *Buffer) LineLen(n int) int {
	return len(b.lines[b.clampLine(n)-1].text)
}

// LineEnd returns the position just before line n's newline.
func (b *Buffer) LineEnd(n int) Pos {
	n = b.clampLine(n)
	return Pos{Line: n, Col: len(b.lines[n-1].text)}
}

// End returns the position after the last character.
func (b *Buffer) End() Pos { return b.LineEnd(len(b.lines)) }

func (b *Buffer) clampLine(n int) int { return max(1, min(n, len(b.lines))) }

// Clamp returns the nearest valid position to p.
func (b *Buffer) Clamp(p Pos) Pos {
	switch {
	case p.Line < 1:
		return Pos{Line: 1}
	case p.Line > len(b.lines):
		return b.End()
	}
	return Pos{Line: p.Line, Col: max(0, min(p.Col, len(b.lines[p.Line-1].text)))}
}

// Offset converts p to a rune offset from the start of the buffer.
func (b *Buffer) Offset(p Pos) int {
	p = b.Clamp(p)
	off := 0
	for i := 0; i < p.Line-1; i++ {
		off += len(b.lines[i].text) + 1
	}
	return off + p.Col
}

// PosAt converts a rune offset to a position, clamping out-of-range offsets.
func (b *Buffer) PosAt(off int) Pos {
	if off < 0 {
		return Pos{Line: 1}
	}
	for i, l := range b.lines {
		if off <= len(l.text) {
			return Pos{Line: i + 1, Col: off}
		}
		off -= len(l.text) + 1
	}
	return b.End()
}

// Text returns the whole contents.
func (b *Buffer) Text() string { return b.Get(Pos{Line: 1}, b.End()) }

// Get returns the text in [start, end).
func (b *Buffer) Get(start, end Pos) string {
	var sb strings.Builder
	b.walk(start, end, func(r rune, _ style.Tag) { sb.WriteRune(r) })
	return sb.String()
}

// Chunks returns the text in [start, end) split into maximal runs of one
// syntax tag.  Untagged text has an empty tag.
func (b *Buffer) Chunks(start, end Pos) []style.Chunk {
	var out []style.Chunk
	var sb strings.Builder
	var cur style.Tag
	b.walk(start, end, func(r rune, t style.Tag) {
		if sb.Len() > 0 && t != cur {
			out = append(out, style.Chunk{Tag: cur, Text: sb.String()})
			sb.Reset()
		}
		cur = t
		sb.WriteRune(r)
	})
	if sb.Len() > 0 {
		out = append(out, style.Chunk{Tag: cur, Text: sb.String()})
	}
	return out
}

// walk visits each character and its syntax tag in [start, end).
func (b *Buffer) walk(start, end Pos, fn func(rune, style.Tag)) {
	r := Range{b.Clamp(start), b.Clamp(end)}.Normalize()
	for ln := r.Start.Line; ln <= r.End.Line; ln++ {
		l := b.lines[ln-1]
		c0, c1 := 0, len(l.text)
		if ln == r.Start.Line {
			c0 = r.Start.Col
		}
		if ln == r.End.Line {
			c1 = r.End.Col
		}
		for c := c0; c < c1; c++ {
			fn(l.text[c], l.tags[c])
		}
		if ln < r.End.Line {
			fn('\n', l.eol)
		}
	}
}

// TagAt returns the syntax tag of the character at p, or "" if it has none.
func (b *Buffer) TagAt(p Pos) style.Tag {
	p = b.Clamp(p)
	l := b.lines[p.Line-1]
	switch {
	case p.Col < len(l.text):
		return l.tags[p.Col]
	case p.Line < len(b.lines):
		return l.eol
	}
	return ""
}

// Insert inserts chunks at p, each character taking its chunk's tag, and
// returns the position after the inserted text.
func (b *Buffer) Insert(at Pos, chunks ...style.Chunk) Pos {
	var end Pos
	b.Group(func() {
		end = b.insert(at, chunks)
		b.changed(KindInsert)
	})
	return end
}

// InsertText inserts untagged text.
func (b *Buffer) InsertText(at Pos, text string) Pos {
	return b.Insert(at, style.Chunk{Text: text})
}

// Delete removes the text in [start, end).
func (b *Buffer) Delete(start, end Pos) {
	b.Group(func() {
		b.delete(start, end)
		b.changed(KindDelete)
	})
}

// Replace deletes [start, end) and inserts chunks in its place as one change.
func (b *Buffer) Replace(start, end Pos, chunks ...style.Chunk) Pos {
	var pos Pos
	b.Group(func() {
		r := Range{start, end}.Normalize()
		b.Delete(r.Start, r.End)
		pos = b.Insert(r.Start, chunks...)
	})
	return pos
}

// SetText replaces the whole contents.
func (b *Buffer) SetText(text string) {
	b.Group(func() {
		b.Delete(Pos{Line: 1}, b.End())
		b.InsertText(Pos{Line: 1}, text)
		b.SetCaret(Pos{Line: 1})
	})
}

func (b *Buffer) insert(at Pos, chunks []style.Chunk) Pos {
	at = b.Clamp(at)
	li := at.Line - 1
	old := b.lines[li]

	cur := line{
		text: slices.Clone(old.text[:at.Col]),
		tags: slices.Clone(old.tags[:at.Col]),
	}
	var added []line
	n := 0
	for _, c := range chunks {
		for _, r := range c.Text {
			n++
			if r == '\n' {
				cur.eol = c.Tag
				added = append(added, cur)
				cur = line{}
				continue
			}
			cur.text = append(cur.text, r)
			cur.tags = append(cur.tags, c.Tag)
		}
	}
	if n == 0 {
		return at
	}
	end := Pos{Line: at.Line + len(added), Col: len(cur.text)}
	cur.text = append(cur.text, old.text[at.Col:]...)
	cur.tags = append(cur.tags, old.tags[at.Col:]...)
	cur.eol = old.eol
	added = append(added, cur)

	off := b.offsetOf(at)
	caret := b.offsetOf(b.caret)
	b.lines = slices.Replace(b.lines, li, li+1, added...)
	for name, rs := range b.overlays {
		runs.AdjustInsert(rs, off, n)
		b.overlays[name] = rs
	}
	if off <= caret {
		caret += n
	}
	b.caret = b.PosAt(caret)

	b.hist.record(op{kind: opInsert, start: at, end: end, chunks: slices.Clone(chunks)})
	return end
}

func (b *Buffer) delete(start, end Pos) {
	r := Range{b.Clamp(start), b.Clamp(end)}.Normalize()
	if r.Empty() {
		return
	}
	removed := b.Chunks(r.Start, r.End)
	q0, q1 := b.offsetOf(r.Start), b.offsetOf(r.End)
	caret := b.offsetOf(b.caret)

	first, last := b.lines[r.Start.Line-1], b.lines[r.End.Line-1]
	merged := line{
		text: append(slices.Clone(first.text[:r.Start.Col]), last.text[r.End.Col:]...),
		tags: append(slices.Clone(first.tags[:r.Start.Col]), last.tags[r.End.Col:]...),
		eol:  last.eol,
	}
	b.lines = slices.Replace(b.lines, r.Start.Line-1, r.End.Line, merged)
	for name, rs := range b.overlays {
		b.overlays[name] = runs.AdjustDelete(rs, q0, q1)
	}
	switch {
	case caret >= q1:
		caret -= q1 - q0
	case caret > q0:
		caret = q0
	}
	b.caret = b.PosAt(caret)
	b.top = b.clampLine(b.top)

	b.hist.record(op{kind: opDelete, start: r.Start, end: r.End, chunks: removed})
}

// offsetOf is Offset without clamping, for positions already clamped.
func (b *Buffer) offsetOf(p Pos) int {
	off := p.Col
	for i := 0; i < p.Line-1; i++ {
		off += len(b.lines[i].text) + 1
	}
	return off
}

// Caret returns the insertion cursor.
func (b *Buffer) Caret() Pos { return b.caret }

// SetCaret moves the insertion cursor.
func (b *Buffer) SetCaret(p Pos) {
	b.setCaret(p)
	b.changed(KindCaret)
}

func (b *Buffer) setCaret(p Pos) { b.caret = b.Clamp(p) }

// View returns the first visible line and column.
func (b *Buffer) View() Pos { return Pos{Line: b.top, Col: b.left} }

// Scroll sets the first visible line and column.
func (b *Buffer) Scroll(p Pos) {
	b.top = b.clampLine(p.Line)
	b.left = max(0, p.Col)
	b.changed(KindScroll)
}

// SetHeight sets the number of visible lines, used by See.  Zero means
// unknown.
func (b *Buffer) SetHeight(n int) { b.height = max(0, n) }

// Height returns the number of visible lines.
func (b *Buffer) Height() int { return b.height }

// See scrolls the minimum needed to make line p.Line visible.
func (b *Buffer) See(p Pos) {
	p = b.Clamp(p)
	top := b.top
	switch {
	case p.Line < top:
		top = p.Line
	case b.height > 0 && p.Line >= top+b.height:
		top = p.Line - b.height + 1
	}
	if top != b.top {
		b.Scroll(Pos{Line: top, Col: b.left})
	}
}

// Selection returns the selected range, if any.
func (b *Buffer) Selection() (Range, bool) {
	rs := b.overlays[selOverlay]
	if len(rs) == 0 {
		return Range{}, false
	}
	return Range{b.PosAt(rs[0].Start), b.PosAt(rs[0].End)}, true
}

// Select sets the selection; an empty range clears it.
func (b *Buffer) Select(r Range) {
	r = Range{b.Clamp(r.Start), b.Clamp(r.End)}.Normalize()
	if r.Empty() {
		b.ClearSelection()
		return
	}
	b.overlays[selOverlay] = []style.StyleRun{{
		Name:  selOverlay,
		Start: b.offsetOf(r.Start),
		End:   b.offsetOf(r.End),
	}}
}

// ClearSelection removes the selection.
func (b *Buffer) ClearSelection() { delete(b.overlays, selOverlay) }

// TagConfigure defines or redefines how the tag e.Name is displayed.
func (b *Buffer) TagConfigure(e style.PaletteEntry) { b.defs[e.Name] = e }

// ClearTagDefs forgets every tag definition.  Tags already on text stay.
func (b *Buffer) ClearTagDefs() { clear(b.defs) }

// TagDef returns the definition of tag, if configured.
func (b *Buffer) TagDef(tag style.Tag) (style.PaletteEntry, bool) {
	e, ok := b.defs[tag]
	return e, ok
}

// TagDefs returns every configured tag definition, sorted by name.
func (b *Buffer) TagDefs() []style.PaletteEntry {
	out := make([]style.PaletteEntry, 0, len(b.defs))
	for _, e := range b.defs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SyntaxRuns returns the syntax tags as sorted rune-offset runs.  Untagged
// text and text tagged style.NoStyle produce no runs.
func (b *Buffer) SyntaxRuns() []style.StyleRun {
	var out []style.StyleRun
	off := 0
	b.walk(Pos{Line: 1}, b.End(), func(_ rune, t style.Tag) {
		if t != "" && t != style.NoStyle {
			if n := len(out); n > 0 && out[n-1].Name == t && out[n-1].End == off {
				out[n-1].End++
			} else {
				out = append(out, style.StyleRun{Name: t, Start: off, End: off + 1})
			}
		}
		off++
	})
	return out
}

// AddOverlay marks r with the overlay name.
func (b *Buffer) AddOverlay(name string, r Range) {
	r = Range{b.Clamp(r.Start), b.Clamp(r.End)}.Normalize()
	if r.Empty() {
		return
	}
	b.overlays[name] = append(b.overlays[name], style.StyleRun{
		Name:  style.Tag(name),
		Start: b.offsetOf(r.Start),
		End:   b.offsetOf(r.End),
	})
}

// ClearOverlay removes every range of the overlay name.
func (b *Buffer) ClearOverlay(name string) { delete(b.overlays, name) }

// Overlay returns the ranges of the overlay name in buffer order.
func (b *Buffer) Overlay(name string) []Range {
	rs := b.OverlayRuns(name)
	out := make([]Range, len(rs))
	for i, r := range rs {
		out[i] = Range{b.PosAt(r.Start), b.PosAt(r.End)}
	}
	return out
}

// OverlayRuns returns the overlay name as sorted rune-offset runs.
func (b *Buffer) OverlayRuns(name string) []style.StyleRun {
	rs := slices.Clone(b.overlays[name])
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
	return rs
}

// FindAll returns every non-overlapping occurrence of pattern, in order.
func (b *Buffer) FindAll(pattern string) []Range {
	if pattern == "" {
		return nil
	}
	text := b.Text()
	plen := utf8.RuneCountInString(pattern)
	var out []Range
	off, i := 0, 0
	for {
		j := strings.Index(text[i:], pattern)
		if j < 0 {
			return out
		}
		off += utf8.RuneCountInString(text[i : i+j])
		out = append(out, Range{b.PosAt(off), b.PosAt(off + plen)})
		off += plen
		i += j + len(pattern)
	}
}
