// Package format turns text into tagged chunks using a chroma lexer and a
// style mapper.
//
// Format never fails: lexer errors and panics degrade to a single plain-text
// chunk, and classifications without a style entry are tagged
// style.NoStyle.  The text of the returned chunks always concatenates back
// to the input.
package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-chroma/internal/stylemap"
	"github.com/cptaffe/acme-chroma/style"
)

var errNoLexer = errors.New("no lexer")

// Formatter produces tagged chunks for one theme.  It holds no per-call
// state and may be shared.
type Formatter struct {
	m   *stylemap.Mapper
	log *zap.Logger
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithLogger sets the logger used to report degraded formatting.
func WithLogger(l *zap.Logger) Option {
	return func(f *Formatter) { f.log = l }
}

// New returns a Formatter resolving tags through m.
func New(m *stylemap.Mapper, opts ...Option) *Formatter {
	f := &Formatter{m: m, log: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mapper returns the formatter's style mapper.
func (f *Formatter) Mapper() *stylemap.Mapper { return f.m }

// Format tokenises text with lexer and returns its chunks in source order.
// Adjacent fragments resolving to the same tag are merged.  If text does not
// end in a newline, a newline the lexer appended is trimmed.
func (f *Formatter) Format(text string, lexer chroma.Lexer) []style.Chunk {
	if text == "" {
		return nil
	}
	tokens, err := tokenise(lexer, text)
	if err != nil {
		f.log.Debug("lexer failed; formatting as plain text", zap.Error(err))
		return f.Plain(text)
	}
	chunks := trimSyntheticNewline(text, f.coalesce(tokens))
	if got := style.Concat(chunks); got != text {
		msg := fmt.Sprintf("chunks do not reconstruct input: got %d bytes, want %d", len(got), len(text))
		if assertInvariants {
			panic("format: " + msg)
		}
		f.log.Error(msg)
		return f.Plain(text)
	}
	return chunks
}

// Plain formats text as a single generic fragment, as a lexer that
// recognises nothing would.
func (f *Formatter) Plain(text string) []style.Chunk {
	if text == "" {
		return nil
	}
	return []style.Chunk{{Tag: f.m.TagFor(chroma.Text), Text: text}}
}

// tokenise runs lexer over text.  Lexers are third-party strategies; a panic
// inside one is reported as an error so that the edit still lands.
func tokenise(lexer chroma.Lexer, text string) (tokens []chroma.Token, err error) {
	if lexer == nil {
		return nil, errNoLexer
	}
	defer func() {
		if r := recover(); r != nil {
			tokens, err = nil, fmt.Errorf("lexer panic: %v", r)
		}
	}()
	// EnsureLF is left off: the buffer must get back exactly what it gave.
	it, err := lexer.Tokenise(&chroma.TokeniseOptions{State: "root"}, text)
	if err != nil {
		return nil, err
	}
	return it.Tokens(), nil
}

func (f *Formatter) coalesce(tokens []chroma.Token) []style.Chunk {
	var (
		chunks []style.Chunk
		cur    style.Tag
		sb     strings.Builder
	)
	flush := func() {
		if sb.Len() > 0 {
			chunks = append(chunks, style.Chunk{Tag: cur, Text: sb.String()})
			sb.Reset()
		}
	}
	for _, tok := range tokens {
		if tok.Value == "" {
			continue
		}
		tag := f.m.TagFor(tok.Type)
		if tag != cur {
			flush()
			cur = tag
		}
		sb.WriteString(tok.Value)
	}
	flush()
	return chunks
}

// trimSyntheticNewline removes the newline a line-oriented lexer appends to
// input that lacks one: a bare "\n" last chunk is dropped, otherwise one
// trailing newline is cut from the last chunk.  Only the last chunk is
// inspected.
func trimSyntheticNewline(text string, chunks []style.Chunk) []style.Chunk {
	if strings.HasSuffix(text, "\n") || len(chunks) == 0 {
		return chunks
	}
	last := &chunks[len(chunks)-1]
	switch {
	case last.Text == "\n":
		return chunks[:len(chunks)-1]
	case strings.HasSuffix(last.Text, "\n"):
		last.Text = last.Text[:len(last.Text)-1]
	}
	return chunks
}
