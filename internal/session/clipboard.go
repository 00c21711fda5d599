package session

import (
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard holds text for Cut, Copy and Paste.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// MemClipboard is a process-local clipboard.
type MemClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *MemClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *MemClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// SystemClipboard uses the host clipboard, or process memory where the host
// has none.
type SystemClipboard struct {
	mem MemClipboard
}

func (c *SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return c.mem.ReadAll()
	}
	return clipboard.ReadAll()
}

func (c *SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return c.mem.WriteAll(text)
	}
	return clipboard.WriteAll(text)
}
