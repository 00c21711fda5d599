package session

import (
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/cptaffe/acme-chroma/internal/stylemap"
)

// Workspace is an ordered set of sessions with one selected.  It always holds
// at least one session.
type Workspace struct {
	fs     afero.Fs
	opts   []Option
	mapper *stylemap.Mapper // set by SetTheme; overrides opts
	tabs   []*Session
	cur    int
}

// NewWorkspace returns a workspace holding one untitled session.  opts apply
// to every session it creates.
func NewWorkspace(fs afero.Fs, opts ...Option) *Workspace {
	w := &Workspace{fs: fs, opts: slices.Clone(opts)}
	w.New()
	return w
}

// options returns the options for a new session.
func (w *Workspace) options() []Option {
	opts := append(slices.Clone(w.opts), WithFs(w.fs))
	if w.mapper != nil {
		opts = append(opts, WithMapper(w.mapper))
	}
	return opts
}

// New adds an empty untitled session and selects it.
func (w *Workspace) New() *Session {
	s := New("", "", w.options()...)
	w.tabs = append(w.tabs, s)
	w.cur = len(w.tabs) - 1
	return s
}

// OpenFile selects the session for path, opening it if needed.  A new session
// takes the place of the current one when that is untitled and empty.
func (w *Workspace) OpenFile(path string) (*Session, error) {
	path = filepath.Clean(path)
	if i := w.index(path); i >= 0 {
		w.cur = i
		return w.tabs[i], nil
	}
	s, err := Open(w.fs, path, w.options()...)
	if err != nil {
		return nil, err
	}
	old := w.Current()
	replace := !old.Saved() && !old.HasContents()
	w.tabs = append(w.tabs, s)
	w.cur = len(w.tabs) - 1
	if replace {
		w.Close(old)
	}
	return s, nil
}

func (w *Workspace) index(path string) int {
	return slices.IndexFunc(w.tabs, func(s *Session) bool {
		return s.Path() != "" && filepath.Clean(s.Path()) == path
	})
}

// Current returns the selected session.
func (w *Workspace) Current() *Session { return w.tabs[w.cur] }

// Select selects the i'th session, reporting whether i is in range.
func (w *Workspace) Select(i int) bool {
	if i < 0 || i >= len(w.tabs) {
		return false
	}
	w.cur = i
	return true
}

// Close removes s.  Closing the last session leaves a fresh untitled one.
func (w *Workspace) Close(s *Session) {
	i := slices.Index(w.tabs, s)
	if i < 0 {
		return
	}
	if len(w.tabs) == 1 {
		w.New()
	}
	w.tabs = slices.Delete(w.tabs, i, i+1)
	if w.cur > i || w.cur >= len(w.tabs) {
		w.cur--
	}
	w.cur = max(0, w.cur)
}

// Sessions returns the sessions in tab order.
func (w *Workspace) Sessions() []*Session { return slices.Clone(w.tabs) }

// SetTheme switches every session to m.
func (w *Workspace) SetTheme(m *stylemap.Mapper) {
	w.mapper = m
	for _, s := range w.tabs {
		s.SetTheme(m)
	}
}
