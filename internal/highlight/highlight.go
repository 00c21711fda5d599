// Package highlight keeps a tagged text surface syntax-highlighted as it is
// edited, re-lexing only a small window around each edit.
package highlight

import (
	"github.com/alecthomas/chroma/v2"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/buffer"
	"github.com/cptaffe/acme-chroma/internal/format"
	"github.com/cptaffe/acme-chroma/style"
)

// Surface is the editable text a Highlighter drives.  Mutations must be
// visible to the very next query.
type Surface interface {
	Get(start, end buffer.Pos) string
	Delete(start, end buffer.Pos)
	Insert(at buffer.Pos, chunks ...style.Chunk) buffer.Pos
	LineEnd(line int) buffer.Pos
	End() buffer.Pos
	Caret() buffer.Pos
	SetCaret(p buffer.Pos)
	View() buffer.Pos
	Scroll(p buffer.Pos)
	Selection() (buffer.Range, bool)
	Group(fn func())
	Retag(fn func())
}

// Highlighter re-tags ranges of a Surface.  It holds no state beyond the
// surface and the current lexer, and does not own the surface.
type Highlighter struct {
	s     Surface
	f     *format.Formatter
	lexer chroma.Lexer
	log   *zap.Logger
}

type Option func(*Highlighter)

// WithLogger sets the logger reformats are reported to at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(h *Highlighter) { h.log = l }
}

// New returns a highlighter for s.  A nil lexer formats everything as plain
// text.
func New(s Surface, f *format.Formatter, lexer chroma.Lexer, opts ...Option) *Highlighter {
	h := &Highlighter{s: s, f: f, lexer: lexer, log: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetLexer swaps the active lexer.  Existing tags are left alone until the
// next reformat.
func (h *Highlighter) SetLexer(lexer chroma.Lexer) { h.lexer = lexer }

// Lexer returns the active lexer.
func (h *Highlighter) Lexer() chroma.Lexer { return h.lexer }

// SetFormatter swaps the formatter, for instance after a theme change.
func (h *Highlighter) SetFormatter(f *format.Formatter) { h.f = f }

// Formatter returns the active formatter.
func (h *Highlighter) Formatter() *format.Formatter { return h.f }

// InsertFormatted formats text and inserts it at at, returning the position
// after it.  With replaceSelection, a current selection is deleted first and
// the text goes in its place.  Text shorter than a complete syntactic unit may
// be tagged imprecisely until a wider reformat.
func (h *Highlighter) InsertFormatted(at buffer.Pos, text string, replaceSelection bool) buffer.Pos {
	end := at
	h.s.Group(func() {
		if sel, ok := h.s.Selection(); ok && replaceSelection {
			h.s.Delete(sel.Start, sel.End)
			at = sel.Start
		}
		end = at
		if chunks := h.f.Format(text, h.lexer); len(chunks) > 0 {
			end = h.s.Insert(at, chunks...)
		}
	})
	return end
}

// ReformatRange re-lexes exactly the text now in [start, end) and replaces it
// with freshly tagged text.  The caret and view are left where they were.
func (h *Highlighter) ReformatRange(start, end buffer.Pos) {
	r := buffer.Range{Start: start, End: end}.Normalize()
	h.s.Retag(func() {
		caret, view := h.s.Caret(), h.s.View()
		text := h.s.Get(r.Start, r.End)
		h.s.Delete(r.Start, r.End)
		if chunks := h.f.Format(text, h.lexer); len(chunks) > 0 {
			h.s.Insert(r.Start, chunks...)
		}
		h.s.SetCaret(caret)
		h.s.Scroll(view)
	})
	h.log.Debug("reformat", zap.Stringer("range", r))
}

// ReformatEverything re-lexes the whole surface.
func (h *Highlighter) ReformatEverything() {
	h.ReformatRange(buffer.Pos{Line: 1}, h.s.End())
}

// DirtyRange returns the lines to re-lex after r was typed with the caret now
// at caret: the caret's line, and for a line break also the line before it.
// Constructs spanning more lines can be left stale; ReformatEverything
// recovers.
func (h *Highlighter) DirtyRange(caret buffer.Pos, r rune) buffer.Range {
	first := caret.Line
	if r == '\n' || r == '\r' {
		first = max(1, caret.Line-1)
	}
	return buffer.Range{Start: buffer.Pos{Line: first}, End: h.s.LineEnd(caret.Line)}
}

// KeyReleased reformats the dirty range for r, which has already been
// inserted.
func (h *Highlighter) KeyReleased(r rune) {
	d := h.DirtyRange(h.s.Caret(), r)
	h.ReformatRange(d.Start, d.End)
}
