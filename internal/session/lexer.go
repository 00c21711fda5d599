package session

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

var ErrUnknownLexer = errors.New("unknown lexer")

// LookupLexer returns the registered lexer called name.
func LookupLexer(name string) (chroma.Lexer, error) {
	l := lexers.Get(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLexer, name)
	}
	return l, nil
}

// DetectLexer picks a lexer for a document: an override keyed by file
// extension, then chroma's filename patterns, then content analysis.  It
// returns nil when nothing matches; the document is then plain text.
func DetectLexer(filename, text string, overrides map[string]string) chroma.Lexer {
	if name, ok := overrides[filepath.Ext(filename)]; ok {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	if filename != "" {
		if l := lexers.Match(filepath.Base(filename)); l != nil {
			return l
		}
	}
	if text != "" {
		return lexers.Analyse(text)
	}
	return nil
}

// LexerName returns the configured name of l, or "" for nil.
func LexerName(l chroma.Lexer) string {
	if l == nil {
		return ""
	}
	return l.Config().Name
}
