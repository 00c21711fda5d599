package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cptaffe/acme-chroma/style"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\nb`, Escape("a\nb"))
	assert.Equal(t, `print("\\n")`, Escape(`print("\n")`))
	assert.Equal(t, `x\r\n`, Escape("x\r\n"))
	assert.Equal(t, "a\nb", Unescape(`a\nb`))
	assert.Equal(t, `print("\n")`, Unescape(`print("\\n")`))
	assert.Equal(t, `\q\`, Unescape(`\q\`))
}

func TestEscapeIsReversible(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringOf(rapid.SampledFrom([]rune("a\\n\r\x01:"))).Draw(t, "s")
		esc := Escape(s)
		if strings.ContainsAny(esc, "\n\r") {
			t.Fatalf("escaped %q still has line breaks: %q", s, esc)
		}
		if got := Unescape(esc); got != s {
			t.Fatalf("Unescape(Escape(%q)) = %q", s, got)
		}
	})
}

func TestEncodeDecode(t *testing.T) {
	chunks := []style.Chunk{
		{Tag: "chroma.Keyword", Text: "if"},
		{Tag: style.NoStyle, Text: " x:\n    "},
		{Tag: "chroma.LiteralString", Text: `"a\nb"`},
		{Tag: style.NoStyle, Text: ""},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, chunks))
	assert.Equal(t,
		"chroma.Keyword:if\n"+
			"none: x:\\n    \n"+
			"chroma.LiteralString:\"a\\\\nb\"\n"+
			"none:\n",
		buf.String())

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestDecodeWithoutFinalNewline(t *testing.T) {
	got, err := Decode(strings.NewReader("none:a:b"))
	require.NoError(t, err)
	assert.Equal(t, []style.Chunk{{Tag: style.NoStyle, Text: "a:b"}}, got)
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"no delimiter\n", ":empty tag\n", "bad tag:x\n"} {
		_, err := Decode(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestEncodeRejectsUnsafeTag(t *testing.T) {
	err := Encode(&bytes.Buffer{}, []style.Chunk{{Tag: "a b", Text: "x"}})
	assert.ErrorIs(t, err, ErrMalformed)
}
