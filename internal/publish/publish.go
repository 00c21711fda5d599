// Package publish sends style runs to the acme-styles compositor.
//
// The compositor is a 9P file server keeping named layers of runs per acme
// window and composing them into each window's style file.  A Publisher owns
// one connection, shared by every Layer it opens and re-established on first
// use after any error.
//
//	p := publish.New("acme-styles")
//	l, err := p.Open(winID, "chroma")
//	if err != nil { ... }
//	defer l.Delete()
//	l.Write(palette, runs)
package publish

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/style"
)

// File is an open file on the compositor.
type File interface {
	io.ReadWriteCloser
}

// FS is the compositor's file tree.
type FS interface {
	Open(name string, mode uint8) (File, error)
}

// Dialer connects to the compositor.
type Dialer func() (FS, error)

// MountService dials the named service in the plan9port namespace.
func MountService(service string) Dialer {
	return func() (FS, error) {
		fs, err := client.MountService(service)
		if err != nil {
			return nil, err
		}
		return fsys{fs}, nil
	}
}

type fsys struct{ fs *client.Fsys }

func (f fsys) Open(name string, mode uint8) (File, error) {
	fid, err := f.fs.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return fid, nil
}

type Publisher struct {
	dial Dialer
	log  *zap.Logger

	mu sync.Mutex
	fs FS
}

type Option func(*Publisher)

// WithDialer replaces the connection to the named service.
func WithDialer(d Dialer) Option { return func(p *Publisher) { p.dial = d } }

func WithLogger(l *zap.Logger) Option { return func(p *Publisher) { p.log = l } }

// New returns a publisher for service.  It connects lazily.
func New(service string, opts ...Option) *Publisher {
	p := &Publisher{dial: MountService(service), log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// conn returns the cached connection, dialing if there is none.
func (p *Publisher) conn() (FS, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fs != nil {
		return p.fs, nil
	}
	fs, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	p.fs = fs
	return fs, nil
}

// reset drops the connection so the next call redials.
func (p *Publisher) reset() {
	p.mu.Lock()
	p.fs = nil
	p.mu.Unlock()
}

// Layer is one named layer on one acme window.
type Layer struct {
	p     *Publisher
	WinID int
	ID    int
	name  string
}

// Open returns the layer called name on winID, creating it if needed.
func (p *Publisher) Open(winID int, name string) (*Layer, error) {
	fs, err := p.conn()
	if err != nil {
		return nil, err
	}
	id, err := findOrCreate(fs, winID, name)
	if err != nil {
		p.reset()
		return nil, err
	}
	p.log.Debug("opened layer", zap.Int("window", winID), zap.Int("layer", id), zap.String("name", name))
	return &Layer{p: p, WinID: winID, ID: id, name: name}, nil
}

// Write replaces the layer's palette and runs.  The compositor replaces a
// layer atomically when its style file is opened for writing, and recomposes
// the window when the file is closed.  A layer that vanished with a
// compositor restart is allocated again, once.
func (l *Layer) Write(palette []style.PaletteEntry, runs []style.StyleRun) (err error) {
	if l == nil {
		return nil
	}
	if len(palette) == 0 && len(runs) == 0 {
		return l.Clear()
	}
	text := []byte(style.Format(palette, runs))

	fs, err := l.p.conn()
	if err != nil {
		return err
	}
	f, err := fs.Open(l.path("style"), plan9.OWRITE)
	if err != nil {
		l.p.reset()
		if f, err = l.reopen(); err != nil {
			return err
		}
	}
	defer func() { err = multierr.Append(err, closeFile(f, "layer style")) }()
	if _, err := f.Write(text); err != nil {
		l.p.reset()
		return fmt.Errorf("write layer %d: %w", l.ID, err)
	}
	return nil
}

// closeFile closes f.  The compositor applies a write on close, so its
// error is the write's.
func closeFile(f File, what string) error {
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", what, err)
	}
	return nil
}

func (l *Layer) reopen() (File, error) {
	fs, err := l.p.conn()
	if err != nil {
		return nil, err
	}
	id, err := findOrCreate(fs, l.WinID, l.name)
	if err != nil {
		l.p.reset()
		return nil, fmt.Errorf("re-alloc layer: %w", err)
	}
	l.p.log.Info("re-allocated layer", zap.Int("window", l.WinID), zap.Int("old", l.ID), zap.Int("layer", id))
	l.ID = id
	f, err := fs.Open(l.path("style"), plan9.OWRITE)
	if err != nil {
		l.p.reset()
		return nil, err
	}
	return f, nil
}

// Clear removes every run from the layer.
func (l *Layer) Clear() error { return l.ctl("clear\n") }

// Delete removes the layer from the compositor, so its styles do not outlive
// the publisher.
func (l *Layer) Delete() error { return l.ctl("delete\n") }

func (l *Layer) ctl(cmd string) (err error) {
	if l == nil {
		return nil
	}
	fs, err := l.p.conn()
	if err != nil {
		return err
	}
	f, err := fs.Open(l.path("ctl"), plan9.OWRITE)
	if err != nil {
		l.p.reset()
		return fmt.Errorf("open layer ctl: %w", err)
	}
	defer func() { err = multierr.Append(err, closeFile(f, "layer ctl")) }()
	if _, err := f.Write([]byte(cmd)); err != nil {
		l.p.reset()
		return fmt.Errorf("layer ctl %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

func (l *Layer) path(file string) string {
	return fmt.Sprintf("%d/layers/%d/%s", l.WinID, l.ID, file)
}

// find looks name up in the window's layer index.
func find(fs FS, winID int, name string) (int, bool) {
	f, err := fs.Open(fmt.Sprintf("%d/layers/index", winID), plan9.OREAD)
	if err != nil {
		return 0, false
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == name {
			if id, err := strconv.Atoi(fields[0]); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func findOrCreate(fs FS, winID int, name string) (int, error) {
	if id, ok := find(fs, winID, name); ok {
		return id, nil
	}

	f, err := fs.Open(fmt.Sprintf("%d/layers/new", winID), plan9.OREAD)
	if err != nil {
		return 0, fmt.Errorf("open layers/new: %w", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("read layers/new: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse layer id %q: %w", data, err)
	}

	nf, err := fs.Open(fmt.Sprintf("%d/layers/%d/name", winID, id), plan9.OWRITE)
	if err != nil {
		return 0, fmt.Errorf("open layer name: %w", err)
	}
	defer nf.Close()
	if _, err := nf.Write([]byte(name)); err != nil {
		return 0, fmt.Errorf("name layer: %w", err)
	}
	return id, nil
}
