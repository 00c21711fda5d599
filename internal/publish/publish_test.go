package publish

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptaffe/acme-chroma/style"
)

// fakeCompositor is an in-memory acme-styles tree for one window.
type fakeCompositor struct {
	mu     sync.Mutex
	names  map[int]string
	styles map[int]string
	ctl    map[int][]string
	nextID int
	dials  int
	// closeErr fails every close of a layer file.
	closeErr error
}

func newFakeCompositor() *fakeCompositor {
	return &fakeCompositor{
		names:  map[int]string{},
		styles: map[int]string{},
		ctl:    map[int][]string{},
		nextID: 1,
	}
}

func (c *fakeCompositor) dial() (FS, error) {
	c.mu.Lock()
	c.dials++
	c.mu.Unlock()
	return c, nil
}

// vanish forgets every layer, as a compositor restart would.
func (c *fakeCompositor) vanish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = map[int]string{}
}

type fakeFile struct {
	r        *strings.Reader
	w        bytes.Buffer
	onClose  func(string)
	closeErr error
}

func (f *fakeFile) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakeFile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeFile) Close() error {
	if f.onClose != nil {
		f.onClose(f.w.String())
	}
	return f.closeErr
}

func (c *fakeCompositor) Open(name string, mode uint8) (File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var win, id int
	var file string
	switch {
	case name == "1/layers/index":
		var sb strings.Builder
		for id, n := range c.names {
			fmt.Fprintf(&sb, "%d %s\n", id, n)
		}
		return &fakeFile{r: strings.NewReader(sb.String())}, nil
	case name == "1/layers/new":
		id := c.nextID
		c.nextID++
		c.names[id] = ""
		return &fakeFile{r: strings.NewReader(fmt.Sprintf("%d\n", id))}, nil
	}
	if _, err := fmt.Sscanf(strings.ReplaceAll(name, "/", " "), "%d layers %d %s", &win, &id, &file); err != nil || win != 1 {
		return nil, errors.New("file does not exist")
	}
	if _, ok := c.names[id]; !ok {
		return nil, errors.New("file does not exist")
	}
	f := &fakeFile{r: strings.NewReader(""), closeErr: c.closeErr}
	f.onClose = func(s string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		switch file {
		case "name":
			c.names[id] = s
		case "style":
			c.styles[id] = s
		case "ctl":
			c.ctl[id] = append(c.ctl[id], s)
		}
	}
	return f, nil
}

func TestOpenCreatesThenFinds(t *testing.T) {
	c := newFakeCompositor()
	p := New("acme-styles", WithDialer(c.dial))

	l, err := p.Open(1, "chroma")
	require.NoError(t, err)
	assert.Equal(t, 1, l.ID)
	assert.Equal(t, "chroma", c.names[1])

	again, err := p.Open(1, "chroma")
	require.NoError(t, err)
	assert.Equal(t, 1, again.ID)
	assert.Equal(t, 1, c.dials)
}

func TestWrite(t *testing.T) {
	c := newFakeCompositor()
	p := New("acme-styles", WithDialer(c.dial))
	l, err := p.Open(1, "chroma")
	require.NoError(t, err)

	err = l.Write(
		[]style.PaletteEntry{{Name: "chroma.Comment", FG: "#008000"}},
		[]style.StyleRun{{Name: "chroma.Comment", Start: 0, End: 4}},
	)
	require.NoError(t, err)
	assert.Equal(t, ":chroma.Comment fg=#008000\n0 4 chroma.Comment\n", c.styles[1])

	require.NoError(t, l.Write(nil, nil))
	assert.Equal(t, []string{"clear\n"}, c.ctl[1], "an empty write clears")
}

func TestWriteReallocatesVanishedLayer(t *testing.T) {
	c := newFakeCompositor()
	p := New("acme-styles", WithDialer(c.dial))
	l, err := p.Open(1, "chroma")
	require.NoError(t, err)

	c.vanish()
	err = l.Write(nil, []style.StyleRun{{Name: "x", Start: 1, End: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, l.ID)
	assert.Equal(t, "chroma", c.names[2])
	assert.Equal(t, "1 1 x\n", c.styles[2])
	assert.Equal(t, 2, c.dials, "the failed open drops the connection")
}

func TestDelete(t *testing.T) {
	c := newFakeCompositor()
	p := New("acme-styles", WithDialer(c.dial))
	l, err := p.Open(1, "chroma")
	require.NoError(t, err)

	require.NoError(t, l.Delete())
	assert.Equal(t, []string{"delete\n"}, c.ctl[1])

	var nilLayer *Layer
	assert.NoError(t, nilLayer.Delete())
	assert.NoError(t, nilLayer.Write(nil, nil))
}

func TestDialError(t *testing.T) {
	boom := errors.New("no such service")
	p := New("acme-styles", WithDialer(func() (FS, error) { return nil, boom }))
	_, err := p.Open(1, "chroma")
	assert.ErrorIs(t, err, boom)
}

func TestWriteReportsCloseError(t *testing.T) {
	c := newFakeCompositor()
	p := New("acme-styles", WithDialer(c.dial))
	l, err := p.Open(1, "chroma")
	require.NoError(t, err)

	rejected := errors.New("bad style line")
	c.mu.Lock()
	c.closeErr = rejected
	c.mu.Unlock()

	err = l.Write(nil, []style.StyleRun{{Name: "chroma.Comment", Start: 0, End: 4}})
	assert.ErrorIs(t, err, rejected)
	assert.ErrorIs(t, l.Delete(), rejected)
}
