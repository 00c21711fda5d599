package acmewin

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"9fans.net/go/acme"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/buffer"
	"github.com/cptaffe/acme-chroma/internal/logger"
	"github.com/cptaffe/acme-chroma/internal/runs"
	"github.com/cptaffe/acme-chroma/internal/session"
	"github.com/cptaffe/acme-chroma/style"
)

// callTimeout is the maximum time call waits for the window goroutine to run
// a closure.
const callTimeout = 5 * time.Second

// WinState is the actor for one acme window.
//
// ID, ctx, cancel, cmdCh and srv are set once at construction and may be read
// from any goroutine.  All other fields are owned by the run goroutine.
type WinState struct {
	ID     int
	ctx    context.Context
	cancel context.CancelFunc
	cmdCh  chan func(*WinState)
	srv    *Server

	// Owned by run.
	win         Window
	events      <-chan *acme.Event
	sess        *session.Session
	layer       Layer
	delay       time.Duration
	flushTimer  *time.Timer
	pending     bool
	published   bool
	prevPalette []style.PaletteEntry
	prevRuns    []style.StyleRun
}

// submit enqueues fn to run in the window's goroutine and returns at once.
// fn is dropped if the window is gone.
func (ws *WinState) submit(fn func(*WinState)) {
	select {
	case ws.cmdCh <- fn:
	case <-ws.ctx.Done():
	}
}

// call enqueues fn and waits until it has run, the window is gone, or
// callTimeout elapses.  It reports whether fn ran.
func (ws *WinState) call(fn func(*WinState)) bool {
	done := make(chan struct{})
	ws.submit(func(ws *WinState) {
		fn(ws)
		close(done)
	})
	select {
	case <-done:
		return true
	case <-ws.ctx.Done():
		return false
	case <-time.After(callTimeout):
		logger.L(ws.ctx).Warn("call timed out; window goroutine unresponsive")
		return false
	}
}

// run is the window goroutine.
func (ws *WinState) run() {
	defer ws.srv.wg.Done()
	log := logger.L(ws.ctx)

	cfg := ws.srv.config()
	ws.delay = cfg.CoalesceDelay
	ws.flushTimer = time.NewTimer(ws.delay)
	ws.flushTimer.Stop()

	if ws.win != nil {
		if err := ws.load(cfg); err != nil {
			log.Error("load window", zap.Error(err))
		} else {
			ws.events = ws.win.Events()
			ws.scheduleFlush()
		}
	}

	for {
		select {
		case fn := <-ws.cmdCh:
			fn(ws)

		case e, ok := <-ws.events:
			if !ok {
				// Event file closed; the window is going away.  Keep serving
				// commands until DelWin cancels us.
				ws.events = nil
				continue
			}
			ws.handle(e)

		case <-ws.flushTimer.C:
			if ws.pending {
				ws.flush()
			}

		case <-ws.ctx.Done():
			ws.flushTimer.Stop()
			if ws.layer != nil {
				if err := ws.layer.Delete(); err != nil {
					log.Debug("delete layer", zap.Error(err))
				}
			}
			if ws.win != nil {
				ws.win.Close()
				ws.win = nil
			}
			return
		}
	}
}

// load reads the window into a fresh session.
func (ws *WinState) load(cfg Config) error {
	name, err := ws.win.Name()
	if err != nil {
		return err
	}
	body, err := ws.win.Body()
	if err != nil {
		return err
	}
	ws.sess = session.New(name, body,
		session.WithFs(afero.NewReadOnlyFs(afero.NewOsFs())),
		session.WithMapper(cfg.Mapper),
		session.WithFont(cfg.Font),
		session.WithLexerOverrides(cfg.LexerOverrides),
		session.WithLogger(logger.L(ws.ctx)),
	)
	// acme keeps the undo history; the mirror does not need one.
	ws.sess.Buffer().SetHistoryLimit(0)
	logger.L(ws.ctx).Debug("loaded window",
		zap.String("name", name),
		zap.Int("runes", utf8.RuneCountInString(body)),
		zap.String("lexer", ws.sess.LexerName()))
	return nil
}

// reload re-reads the body after the mirror lost track of it.
func (ws *WinState) reload() {
	body, err := ws.win.Body()
	if err != nil {
		logger.L(ws.ctx).Error("reload body", zap.Error(err))
		return
	}
	ws.sess.SetText(body)
	ws.scheduleFlush()
}

func (ws *WinState) handle(e *acme.Event) {
	if ws.sess == nil {
		return
	}
	switch e.C2 {
	case 'I':
		ws.applyInsert(e)
	case 'D':
		ws.applyDelete(e.Q0, e.Q1)
	case 'x', 'X', 'l', 'L':
		if err := ws.win.Pass(e); err != nil {
			logger.L(ws.ctx).Error("pass event", zap.Error(err))
		}
	}
}

// applyInsert mirrors a body insertion.  Keyboard input of a single rune
// reformats around the caret; anything else reformats the touched lines.
func (ws *WinState) applyInsert(e *acme.Event) {
	n := e.Q1 - e.Q0
	if n <= 0 {
		return
	}
	b := ws.sess.Buffer()
	if e.Q0 > b.Offset(b.End()) {
		ws.reload()
		return
	}
	text := string(e.Text)
	if utf8.RuneCountInString(text) != n {
		// acme omits long insertions from the event.
		var err error
		if text, err = ws.win.Range(e.Q0, e.Q1); err != nil {
			logger.L(ws.ctx).Error("read insertion", zap.Error(err))
			ws.reload()
			return
		}
	}

	hl := ws.sess.Highlighter()
	b.Group(func() {
		at := b.PosAt(e.Q0)
		end := b.InsertText(at, text)
		b.SetCaret(end)
		if r, size := utf8.DecodeRuneInString(text); e.C1 == 'K' && size == len(text) {
			hl.KeyReleased(r)
		} else {
			hl.ReformatRange(buffer.Pos{Line: at.Line}, b.LineEnd(end.Line))
		}
	})
	runs.AdjustInsert(ws.prevRuns, e.Q0, n)
	ws.scheduleFlush()
}

// applyDelete mirrors a body deletion and reformats the joined line.
func (ws *WinState) applyDelete(q0, q1 int) {
	if q1 <= q0 {
		return
	}
	b := ws.sess.Buffer()
	if q1 > b.Offset(b.End()) {
		ws.reload()
		return
	}
	hl := ws.sess.Highlighter()
	b.Group(func() {
		at := b.PosAt(q0)
		b.Delete(at, b.PosAt(q1))
		b.SetCaret(at)
		hl.ReformatRange(buffer.Pos{Line: at.Line}, b.LineEnd(at.Line))
	})
	ws.prevRuns = runs.AdjustDelete(ws.prevRuns, q0, q1)
	ws.scheduleFlush()
}

// scheduleFlush arms the coalesce timer.
func (ws *WinState) scheduleFlush() {
	ws.pending = true
	resetTimer(ws.flushTimer, ws.delay)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// flush publishes the session's runs if they differ from what the compositor
// already holds.
func (ws *WinState) flush() {
	ws.pending = false
	if ws.sess == nil {
		return
	}
	log := logger.L(ws.ctx)
	pal, rs := ws.sess.Palette(), ws.sess.Runs()
	if ws.published && palettesEqual(ws.prevPalette, pal) {
		if _, _, changed := runs.Diff(ws.prevRuns, rs); !changed {
			return
		}
	}
	if ws.layer == nil {
		l, err := ws.srv.openLayer(ws.ID, ws.srv.config().LayerName)
		if err != nil {
			log.Warn("open layer", zap.Error(err))
			return
		}
		ws.layer = l
	}
	if err := ws.layer.Write(pal, rs); err != nil {
		log.Error("publish", zap.Error(err))
		return
	}
	log.Debug("published", zap.Int("runs", len(rs)))
	ws.published = true
	ws.prevPalette = pal
	ws.prevRuns = rs
}

func palettesEqual(a, b []style.PaletteEntry) bool {
	return slices.EqualFunc(a, b, func(x, y style.PaletteEntry) bool {
		return x.Name == y.Name && x.Equal(y)
	})
}

// ---- public API (safe to call from any goroutine) ----

// Text returns the mirrored body.
func (ws *WinState) Text() string {
	var text string
	ws.call(func(ws *WinState) {
		if ws.sess != nil {
			text = ws.sess.Text()
		}
	})
	return text
}

// Runs returns the runs the window would publish now.
func (ws *WinState) Runs() []style.StyleRun {
	var rs []style.StyleRun
	ws.call(func(ws *WinState) {
		if ws.sess != nil {
			rs = ws.sess.Runs()
		}
	})
	return rs
}

// LexerName returns the active lexer's name, or "" for plain text.
func (ws *WinState) LexerName() string {
	var name string
	ws.call(func(ws *WinState) {
		if ws.sess != nil {
			name = ws.sess.LexerName()
		}
	})
	return name
}

// SetLexer switches the window to the lexer called name.
func (ws *WinState) SetLexer(name string) error {
	err := fmt.Errorf("set lexer: window %d not loaded", ws.ID)
	ws.call(func(ws *WinState) {
		if ws.sess == nil {
			return
		}
		if err = ws.sess.SetLexer(name); err == nil {
			ws.scheduleFlush()
		}
	})
	return err
}

// Reformat re-lexes the whole window.
func (ws *WinState) Reformat() {
	ws.submit(func(ws *WinState) {
		if ws.sess == nil {
			return
		}
		ws.sess.Highlighter().ReformatEverything()
		ws.scheduleFlush()
	})
}

// Find marks every occurrence of pattern and returns the count.
func (ws *WinState) Find(pattern string) int {
	var n int
	ws.call(func(ws *WinState) {
		if ws.sess == nil {
			return
		}
		n = ws.sess.Find(pattern)
		ws.scheduleFlush()
	})
	return n
}

// ClearFind removes every search mark.
func (ws *WinState) ClearFind() {
	ws.submit(func(ws *WinState) {
		if ws.sess == nil {
			return
		}
		ws.sess.ClearFind()
		ws.scheduleFlush()
	})
}
