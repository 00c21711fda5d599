// Package session is the document shell around the highlighting core: one
// Session per open document, holding its buffer, highlighter, file and saved
// state, and a Workspace of sessions shown as tabs.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/buffer"
	"github.com/cptaffe/acme-chroma/internal/format"
	"github.com/cptaffe/acme-chroma/internal/highlight"
	"github.com/cptaffe/acme-chroma/internal/runs"
	"github.com/cptaffe/acme-chroma/internal/stylemap"
	"github.com/cptaffe/acme-chroma/style"
)

var ErrNoPath = errors.New("session has no path")

const (
	// Untitled names sessions with no file.
	Untitled = "Untitled"
	// SearchOverlay is the overlay and tag marking Find matches.
	SearchOverlay = "search"
)

var searchEntry = style.PaletteEntry{Name: SearchOverlay, BG: "#008000"}

type options struct {
	fs        afero.Fs
	clip      Clipboard
	mapper    *stylemap.Mapper
	font      stylemap.Font
	lexer     chroma.Lexer
	overrides map[string]string
	log       *zap.Logger
}

type Option func(*options)

// WithFs sets the filesystem Save writes to.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithClipboard sets the clipboard used by Cut, Copy and Paste.
func WithClipboard(c Clipboard) Option { return func(o *options) { o.clip = c } }

// WithMapper sets the theme.
func WithMapper(m *stylemap.Mapper) Option { return func(o *options) { o.mapper = m } }

// WithFont sets the base font theme font deltas apply to.
func WithFont(f stylemap.Font) Option { return func(o *options) { o.font = f } }

// WithLexer fixes the lexer instead of detecting one.
func WithLexer(l chroma.Lexer) Option { return func(o *options) { o.lexer = l } }

// WithLexerOverrides maps file extensions (".h") to lexer names.
func WithLexerOverrides(m map[string]string) Option {
	return func(o *options) { o.overrides = m }
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// Session is one open document.
type Session struct {
	opts  options
	path  string
	saved bool
	clean string

	buf    *buffer.Buffer
	hl     *highlight.Highlighter
	gutter []int
}

// New returns an unsaved session holding text.  An empty name means untitled.
func New(name, text string, opts ...Option) *Session {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.clip == nil {
		o.clip = &SystemClipboard{}
	}
	if o.mapper == nil {
		o.mapper = stylemap.New(stylemap.FromChroma(styles.Fallback))
	}

	s := &Session{opts: o, path: name, buf: buffer.New(text)}
	lexer := o.lexer
	if lexer == nil {
		lexer = DetectLexer(name, text, o.overrides)
	}
	s.hl = highlight.New(s.buf, format.New(o.mapper, format.WithLogger(o.log)), lexer,
		highlight.WithLogger(o.log))
	s.configureTags()
	s.hl.ReformatEverything()
	s.buf.Subscribe(func(buffer.Change) { s.redrawGutter() })
	s.redrawGutter()
	return s
}

// Open reads path from fs into a new saved session.
func Open(fs afero.Fs, path string, opts ...Option) (*Session, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := New(path, string(data), append(opts, WithFs(fs))...)
	s.saved = true
	s.clean = string(data)
	s.opts.log.Debug("opened", zap.String("path", path), zap.String("lexer", s.LexerName()))
	return s, nil
}

// Save writes the text to the session's path.
func (s *Session) Save() error {
	if s.path == "" {
		return ErrNoPath
	}
	text := s.buf.Text()
	if err := writeFile(s.opts.fs, s.path, text); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.saved = true
	s.clean = text
	s.opts.log.Debug("saved", zap.String("path", s.path), zap.Int("bytes", len(text)))
	return nil
}

// SaveAs sets the session's path and saves to it.
func (s *Session) SaveAs(path string) error {
	s.path = path
	return s.Save()
}

func writeFile(fs afero.Fs, path, text string) (err error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	_, err = io.WriteString(f, text)
	return err
}

// Name is the path, or Untitled.
func (s *Session) Name() string {
	if s.path == "" {
		return Untitled
	}
	return s.path
}

// Path is the file the session saves to, or "".
func (s *Session) Path() string { return s.path }

// Saved reports whether the session has been read from or written to a file.
func (s *Session) Saved() bool { return s.saved }

// Modified reports whether the text differs from the last load or save.
func (s *Session) Modified() bool { return s.buf.Text() != s.clean }

// HasContents reports whether the document is non-empty.
func (s *Session) HasContents() bool { return s.buf.End() != (buffer.Pos{Line: 1}) }

// Buffer returns the session's buffer.
func (s *Session) Buffer() *buffer.Buffer { return s.buf }

// Highlighter returns the session's highlighter.
func (s *Session) Highlighter() *highlight.Highlighter { return s.hl }

func (s *Session) Text() string { return s.buf.Text() }

// SetText replaces the whole document as one undoable step.
func (s *Session) SetText(text string) {
	s.buf.Group(func() {
		s.buf.SetText(text)
		s.hl.ReformatEverything()
	})
}

// Type inserts r at the caret, replacing any selection, and reformats around
// it.  A carriage return inserts a line break.
func (s *Session) Type(r rune) {
	s.buf.Group(func() {
		if sel, ok := s.buf.Selection(); ok {
			s.buf.Delete(sel.Start, sel.End)
		}
		text := string(r)
		if r == '\r' {
			text = "\n"
		}
		s.buf.InsertText(s.buf.Caret(), text)
		s.hl.KeyReleased(r)
		s.buf.See(s.buf.Caret())
	})
}

// Backspace deletes the selection, or the character before the caret.
func (s *Session) Backspace() {
	s.buf.Group(func() {
		if sel, ok := s.buf.Selection(); ok {
			s.buf.Delete(sel.Start, sel.End)
		} else {
			caret := s.buf.Caret()
			if caret == (buffer.Pos{Line: 1}) {
				return
			}
			s.buf.Delete(s.buf.PosAt(s.buf.Offset(caret)-1), caret)
		}
		s.hl.KeyReleased('\b')
		s.buf.See(s.buf.Caret())
	})
}

// Cut moves the selection to the clipboard.
func (s *Session) Cut() error {
	sel, ok := s.buf.Selection()
	if !ok {
		return nil
	}
	if err := s.opts.clip.WriteAll(s.buf.Get(sel.Start, sel.End)); err != nil {
		return fmt.Errorf("cut: %w", err)
	}
	s.buf.Group(func() {
		s.buf.Delete(sel.Start, sel.End)
		s.hl.KeyReleased('\b')
	})
	return nil
}

// Copy puts the selection on the clipboard.
func (s *Session) Copy() error {
	sel, ok := s.buf.Selection()
	if !ok {
		return nil
	}
	if err := s.opts.clip.WriteAll(s.buf.Get(sel.Start, sel.End)); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// Paste inserts the clipboard at the caret in place of any selection.
func (s *Session) Paste() error {
	text, err := s.opts.clip.ReadAll()
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	s.hl.InsertFormatted(s.buf.Caret(), text, true)
	return nil
}

// Find marks every occurrence of pattern with the search overlay and returns
// how many there were.  Earlier marks are kept.
func (s *Session) Find(pattern string) int {
	found := s.buf.FindAll(pattern)
	for _, r := range found {
		s.buf.AddOverlay(SearchOverlay, r)
	}
	return len(found)
}

// ClearFind removes every search mark.
func (s *Session) ClearFind() { s.buf.ClearOverlay(SearchOverlay) }

// Undo reverts the last edit.  Restored text is reformatted in full since
// history does not track tags.
func (s *Session) Undo() bool { return s.history(s.buf.Undo) }

// Redo reapplies the last undone edit.
func (s *Session) Redo() bool { return s.history(s.buf.Redo) }

func (s *Session) history(step func() bool) bool {
	var ok bool
	s.buf.Group(func() {
		if ok = step(); ok {
			s.hl.ReformatEverything()
		}
	})
	return ok
}

// SetLexer switches to the lexer called name and reformats.
func (s *Session) SetLexer(name string) error {
	l, err := LookupLexer(name)
	if err != nil {
		return err
	}
	s.hl.SetLexer(l)
	s.hl.ReformatEverything()
	return nil
}

// GuessLexer detects a lexer from the name and text, switches to it and
// reformats.  It returns the lexer's name, or "" for plain text.
func (s *Session) GuessLexer() string {
	l := DetectLexer(s.path, s.buf.Text(), s.opts.overrides)
	s.hl.SetLexer(l)
	s.hl.ReformatEverything()
	return LexerName(l)
}

// LexerName is the active lexer's name, or "" for plain text.
func (s *Session) LexerName() string { return LexerName(s.hl.Lexer()) }

// SetTheme switches to m and reformats.
func (s *Session) SetTheme(m *stylemap.Mapper) {
	s.opts.mapper = m
	s.hl.SetFormatter(format.New(m, format.WithLogger(s.opts.log)))
	s.configureTags()
	s.hl.ReformatEverything()
}

// SetFont changes the base font and redefines tags.
func (s *Session) SetFont(f stylemap.Font) {
	s.opts.font = f
	s.configureTags()
}

func (s *Session) configureTags() {
	s.buf.ClearTagDefs()
	for _, e := range s.opts.mapper.Palette(s.opts.font) {
		s.buf.TagConfigure(e)
	}
	s.buf.TagConfigure(searchEntry)
}

// Palette returns the tag definitions the session's runs refer to.
func (s *Session) Palette() []style.PaletteEntry { return s.buf.TagDefs() }

// Runs returns the syntax tags with search marks layered on top, as
// rune-offset runs.
func (s *Session) Runs() []style.StyleRun {
	return runs.Compose(s.buf.SyntaxRuns(), s.buf.OverlayRuns(SearchOverlay))
}

// Gutter returns the line numbers in view.
func (s *Session) Gutter() []int { return slices.Clone(s.gutter) }

func (s *Session) redrawGutter() {
	top := s.buf.View().Line
	last := s.buf.Lines()
	if h := s.buf.Height(); h > 0 {
		last = min(last, top+h-1)
	}
	s.gutter = s.gutter[:0]
	for n := top; n <= last; n++ {
		s.gutter = append(s.gutter, n)
	}
}
