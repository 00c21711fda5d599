// Package config loads acme-chroma settings from a config file, the
// environment (ACME_CHROMA_*) and defaults, and watches the file for changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/cptaffe/acme-chroma/internal/stylemap"
	"github.com/cptaffe/acme-chroma/style"
)

const envPrefix = "ACME_CHROMA"

// Config holds every setting.
type Config struct {
	// Theme names a chroma style.  Ignored when Palette is set.
	Theme string `mapstructure:"theme"`
	// Palette is an acme-styles palette file whose entries name chroma tags.
	Palette string `mapstructure:"palette"`
	// Layer is the compositor layer name runs are published under.
	Layer string `mapstructure:"layer"`
	// CoalesceDelay batches edits before publishing.
	CoalesceDelay time.Duration `mapstructure:"coalesce_delay"`
	Font          Font          `mapstructure:"font"`
	// Lexers maps file extensions, without the dot, to lexer names.
	Lexers  map[string]string `mapstructure:"lexers"`
	Verbose bool              `mapstructure:"verbose"`
}

type Font struct {
	Family string `mapstructure:"family"`
	Size   int    `mapstructure:"size"`
}

// Defaults sets the default for every key on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("theme", "github")
	v.SetDefault("palette", "")
	v.SetDefault("layer", "chroma")
	v.SetDefault("coalesce_delay", 20*time.Millisecond)
	v.SetDefault("font.family", "")
	v.SetDefault("font.size", 0)
	v.SetDefault("lexers", map[string]string{})
	v.SetDefault("verbose", false)
}

// New returns a viper instance with defaults and environment binding, reading
// path if non-empty.
func New(fs afero.Fs, path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)
	Defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Decode extracts a Config from v.
func Decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load reads path (optional) and returns the resulting Config.
func Load(fs afero.Fs, path string) (Config, *viper.Viper, error) {
	v, err := New(fs, path)
	if err != nil {
		return Config{}, nil, err
	}
	c, err := Decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return c, v, nil
}

// Watch calls fn with the new Config whenever v's config file changes.
// Decode failures are passed to fn as errors.
func Watch(v *viper.Viper, fn func(Config, fsnotify.Event, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		c, err := Decode(v)
		fn(c, e, err)
	})
	v.WatchConfig()
}

// LexerOverrides returns Lexers keyed by extension with its leading dot.
func (c Config) LexerOverrides() map[string]string {
	m := make(map[string]string, len(c.Lexers))
	for ext, name := range c.Lexers {
		m["."+strings.TrimPrefix(ext, ".")] = name
	}
	return m
}

// BaseFont is the font tag font deltas apply to.
func (c Config) BaseFont() stylemap.Font {
	return stylemap.Font{Family: c.Font.Family, Size: c.Font.Size}
}

// Mapper builds the theme the config selects: the palette file when set,
// else the named chroma style.  Palette entries naming tags chroma does not
// know are skipped; the mapper is still returned, with an error wrapping
// stylemap.ErrUnknownTag that lists them.
func (c Config) Mapper(fs afero.Fs) (*stylemap.Mapper, error) {
	if c.Palette == "" {
		theme, err := stylemap.Lookup(c.Theme)
		if err != nil {
			return nil, err
		}
		return stylemap.New(theme), nil
	}
	data, err := afero.ReadFile(fs, c.Palette)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	theme, err := stylemap.FromPalette(c.Palette, style.ParsePalette(string(data)))
	if err != nil && !errors.Is(err, stylemap.ErrUnknownTag) {
		return nil, err
	}
	return stylemap.New(theme), err
}
