package acmewin

import (
	"fmt"
	"strings"

	"9fans.net/go/acme"

	"github.com/cptaffe/acme-chroma/style"
)

// Window is the acme window a WinState mirrors.
type Window interface {
	// Name is the window's file name, the first word of its tag.
	Name() (string, error)
	Body() (string, error)
	// Range reads the body runes [q0, q1).
	Range(q0, q1 int) (string, error)
	// Events delivers the window's events until it is closed.
	Events() <-chan *acme.Event
	// Pass hands an event back to acme for its default handling.
	Pass(e *acme.Event) error
	Close()
}

// Layer receives a window's composed runs.
type Layer interface {
	Write(palette []style.PaletteEntry, runs []style.StyleRun) error
	Delete() error
}

type acmeWindow struct {
	w *acme.Win
}

// OpenWindow opens acme window id.
func OpenWindow(id int) (Window, error) {
	w, err := acme.Open(id, nil)
	if err != nil {
		return nil, err
	}
	return &acmeWindow{w: w}, nil
}

func (a *acmeWindow) Name() (string, error) {
	tag, err := a.w.ReadAll("tag")
	if err != nil {
		return "", fmt.Errorf("read tag: %w", err)
	}
	fields := strings.Fields(string(tag))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

func (a *acmeWindow) Body() (string, error) {
	b, err := a.w.ReadAll("body")
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func (a *acmeWindow) Range(q0, q1 int) (string, error) {
	if err := a.w.Addr("#%d,#%d", q0, q1); err != nil {
		return "", fmt.Errorf("set addr: %w", err)
	}
	b, err := a.w.ReadAll("xdata")
	if err != nil {
		return "", fmt.Errorf("read xdata: %w", err)
	}
	return string(b), nil
}

func (a *acmeWindow) Events() <-chan *acme.Event { return a.w.EventChan() }

func (a *acmeWindow) Pass(e *acme.Event) error { return a.w.WriteEvent(e) }

func (a *acmeWindow) Close() { a.w.CloseFiles() }
