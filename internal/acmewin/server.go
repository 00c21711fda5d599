// Package acmewin mirrors acme windows into highlighted sessions and
// publishes their syntax runs to the acme-styles compositor.
//
// Each window is owned by one goroutine, its WinState actor; everything else
// talks to it by submitting closures.
package acmewin

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/logger"
	"github.com/cptaffe/acme-chroma/internal/publish"
	"github.com/cptaffe/acme-chroma/internal/stylemap"
)

// Config is the server's window-independent settings.
type Config struct {
	Mapper *stylemap.Mapper
	Font   stylemap.Font
	// LayerName is the compositor layer runs are published under.
	LayerName string
	// CoalesceDelay batches edits into one publish.
	CoalesceDelay time.Duration
	// LexerOverrides maps file extensions (".h") to lexer names.
	LexerOverrides map[string]string
}

// Server is the registry of mirrored windows.
//
// mu protects wins and cfg; it is never held while doing any I/O.
type Server struct {
	mu   sync.Mutex
	cfg  Config
	wins map[int]*WinState

	openWindow func(id int) (Window, error)
	openLayer  func(winID int, name string) (Layer, error)

	ctx context.Context // root context; cancelled on shutdown
	wg  sync.WaitGroup  // tracks live window goroutines
}

type Option func(*Server)

// WithWindows replaces how windows are opened.
func WithWindows(open func(id int) (Window, error)) Option {
	return func(s *Server) { s.openWindow = open }
}

// WithLayers replaces how compositor layers are opened.
func WithLayers(open func(winID int, name string) (Layer, error)) Option {
	return func(s *Server) { s.openLayer = open }
}

// WithPublisher publishes through p.
func WithPublisher(p *publish.Publisher) Option {
	return WithLayers(func(winID int, name string) (Layer, error) {
		l, err := p.Open(winID, name)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
}

// NewServer returns a server whose windows live until ctx is cancelled.
func NewServer(ctx context.Context, cfg Config, opts ...Option) *Server {
	if cfg.Mapper == nil {
		cfg.Mapper = stylemap.New(stylemap.Theme{Name: "none"})
	}
	if cfg.LayerName == "" {
		cfg.LayerName = "chroma"
	}
	if cfg.CoalesceDelay <= 0 {
		cfg.CoalesceDelay = 20 * time.Millisecond
	}
	s := &Server{
		cfg:        cfg,
		wins:       make(map[int]*WinState),
		openWindow: OpenWindow,
		ctx:        ctx,
	}
	for _, o := range opts {
		o(s)
	}
	if s.openLayer == nil {
		WithPublisher(publish.New("acme-styles", publish.WithLogger(logger.L(ctx))))(s)
	}
	return s
}

// Ctx returns the root context of the server.
func (s *Server) Ctx() context.Context { return s.ctx }

// Wait blocks until all window goroutines have exited.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// AddWin starts mirroring window id.  It returns nil if the window is
// already mirrored.
//
// The window is opened without s.mu held; if another goroutine raced to add
// the same id, the loser closes what it opened.
func (s *Server) AddWin(id int) *WinState {
	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	ctx = logger.NewContext(ctx, logger.L(s.ctx).With(zap.Int("window", id)))

	w, err := s.openWindow(id)
	if err != nil {
		// The window may already be gone; run handles a nil window.
		logger.L(ctx).Error("open acme window", zap.Error(err))
	}

	ws := &WinState{
		ID:     id,
		ctx:    ctx,
		cancel: cancel,
		cmdCh:  make(chan func(*WinState), 64),
		srv:    s,
		win:    w,
	}

	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		s.mu.Unlock()
		cancel()
		if w != nil {
			w.Close()
		}
		return nil
	}
	s.wins[id] = ws
	s.mu.Unlock()

	s.wg.Add(1)
	go ws.run()
	return ws
}

// DelWin stops mirroring window id.
func (s *Server) DelWin(id int) {
	s.mu.Lock()
	ws := s.wins[id]
	delete(s.wins, id)
	s.mu.Unlock()
	if ws != nil {
		ws.cancel()
	}
}

// GetWin returns the WinState for id, or nil.
func (s *Server) GetWin(id int) *WinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wins[id]
}

// WinIDs returns all mirrored window ids in ascending order.
func (s *Server) WinIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.wins))
	for id := range s.wins {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetTheme switches every window, and windows added later, to m and font.
func (s *Server) SetTheme(m *stylemap.Mapper, font stylemap.Font) {
	s.mu.Lock()
	s.cfg.Mapper = m
	s.cfg.Font = font
	wins := make([]*WinState, 0, len(s.wins))
	for _, ws := range s.wins {
		wins = append(wins, ws)
	}
	s.mu.Unlock()

	for _, ws := range wins {
		ws.submit(func(ws *WinState) {
			if ws.sess == nil {
				return
			}
			ws.sess.SetFont(font)
			ws.sess.SetTheme(m)
			ws.scheduleFlush()
		})
	}
}
