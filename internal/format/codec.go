package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cptaffe/acme-chroma/style"
)

// ErrMalformed reports a chunk stream line that does not carry a safe tag
// followed by the ':' delimiter.
var ErrMalformed = errors.New("malformed chunk stream")

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	unescapes = map[byte]byte{'\\': '\\', 'n': '\n', 'r': '\r'}
)

// Escape protects s for a line-oriented stream: structural newlines and
// carriage returns become `\n` and `\r`, and literal backslashes are doubled
// so that a literal `\n` in the source cannot be mistaken for a newline.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape.  Unescape(Escape(s)) == s for every s.
// Unknown escapes and a trailing lone backslash are kept as written.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if u, ok := unescapes[s[i+1]]; ok {
				sb.WriteByte(u)
				i++
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Encode writes chunks to w as "tag:payload" lines with escaped payloads.
func Encode(w io.Writer, chunks []style.Chunk) error {
	bw := bufio.NewWriter(w)
	for i, c := range chunks {
		if !c.Tag.Safe() {
			return fmt.Errorf("%w: chunk %d: unsafe tag %q", ErrMalformed, i, c.Tag)
		}
		bw.WriteString(string(c.Tag))
		bw.WriteByte(':')
		bw.WriteString(Escape(c.Text))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Decode parses a stream written by Encode.
func Decode(r io.Reader) ([]style.Chunk, error) {
	br := bufio.NewReader(r)
	var chunks []style.Chunk
	for n := 1; ; n++ {
		line, err := br.ReadString('\n')
		if line == "" && err == io.EOF {
			return chunks, nil
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = strings.TrimSuffix(line, "\n")
		tagEnd := strings.IndexByte(line, ':')
		if tagEnd < 0 {
			return nil, fmt.Errorf("%w: line %d: no tag delimiter", ErrMalformed, n)
		}
		tag := style.Tag(line[:tagEnd])
		if !tag.Safe() {
			return nil, fmt.Errorf("%w: line %d: unsafe tag %q", ErrMalformed, n, tag)
		}
		chunks = append(chunks, style.Chunk{Tag: tag, Text: Unescape(line[tagEnd+1:])})
		if err == io.EOF {
			return chunks, nil
		}
	}
}
