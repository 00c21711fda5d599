package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptaffe/acme-chroma/internal/stylemap"
)

func TestDefaults(t *testing.T) {
	c, _, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, "github", c.Theme)
	assert.Equal(t, "chroma", c.Layer)
	assert.Equal(t, 20*time.Millisecond, c.CoalesceDelay)
	assert.False(t, c.Verbose)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/acme-chroma.yaml", []byte(`
theme: monokai
coalesce_delay: 50ms
font:
  family: /mnt/font/GoMono/11a/font
  size: 11
lexers:
  h: c
`), 0o644))

	c, _, err := Load(fs, "/etc/acme-chroma.yaml")
	require.NoError(t, err)
	assert.Equal(t, "monokai", c.Theme)
	assert.Equal(t, 50*time.Millisecond, c.CoalesceDelay)
	assert.Equal(t, stylemap.Font{Family: "/mnt/font/GoMono/11a/font", Size: 11}, c.BaseFont())
	assert.Equal(t, map[string]string{"h": "c"}, c.Lexers)
	assert.Equal(t, map[string]string{".h": "c"}, c.LexerOverrides())
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(afero.NewMemMapFs(), "/nope.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ACME_CHROMA_LAYER", "syntax")
	t.Setenv("ACME_CHROMA_FONT_SIZE", "14")
	c, _, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, "syntax", c.Layer)
	assert.Equal(t, 14, c.Font.Size)
}

func TestMapperFromTheme(t *testing.T) {
	m, err := Config{Theme: "monokai"}.Mapper(afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, "monokai", m.Name())

	_, err = Config{Theme: "no-such-theme"}.Mapper(afero.NewMemMapFs())
	assert.ErrorIs(t, err, stylemap.ErrUnknownTheme)
}

func TestMapperFromPalette(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/styles", []byte(
		":chroma.Comment fg=#008000 italic\n:keyword fg=#0000ff\n"), 0o644))

	m, err := Config{Theme: "monokai", Palette: "/styles"}.Mapper(fs)
	require.ErrorIs(t, err, stylemap.ErrUnknownTag)
	assert.Contains(t, err.Error(), `"keyword"`)
	require.NotNil(t, m, "known entries still apply")
	a, ok := m.AttributesFor(stylemap.TagName(chroma.Comment))
	require.True(t, ok)
	assert.Equal(t, "#008000", a.FG)
	assert.True(t, a.Font.Italic)
	assert.Equal(t, stylemap.TagName(chroma.Comment), m.TagFor(chroma.CommentSingle))

	_, err = Config{Palette: "/missing"}.Mapper(fs)
	assert.Error(t, err)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layer: one\n"), 0o644))

	_, v, err := Load(afero.NewOsFs(), path)
	require.NoError(t, err)

	got := make(chan Config, 8)
	Watch(v, func(c Config, _ fsnotify.Event, err error) {
		if err == nil {
			got <- c
		}
	})
	require.NoError(t, os.WriteFile(path, []byte("layer: two\n"), 0o644))

	require.Eventually(t, func() bool {
		select {
		case c := <-got:
			return c.Layer == "two"
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
