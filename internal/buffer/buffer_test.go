package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cptaffe/acme-chroma/style"
)

func TestNewAndGeometry(t *testing.T) {
	b := New("ab\ncde\n")
	assert.Equal(t, 3, b.Lines())
	assert.Equal(t, 3, b.LineLen(2))
	assert.Equal(t, Pos{Line: 2, Col: 3}, b.LineEnd(2))
	assert.Equal(t, Pos{Line: 3, Col: 0}, b.End())
	assert.Equal(t, Pos{Line: 1}, b.Caret())
	assert.Equal(t, "ab\ncde\n", b.Text())
	assert.Equal(t, "b\ncd", b.Get(Pos{1, 1}, Pos{2, 2}))
	assert.Equal(t, uint64(0), b.Version())

	empty := New("")
	assert.Equal(t, 1, empty.Lines())
	assert.Equal(t, Pos{Line: 1}, empty.End())
}

func TestClampAndOffsets(t *testing.T) {
	b := New("ab\ncde")
	assert.Equal(t, Pos{Line: 1}, b.Clamp(Pos{Line: 0, Col: 5}))
	assert.Equal(t, Pos{Line: 2, Col: 3}, b.Clamp(Pos{Line: 9}))
	assert.Equal(t, Pos{Line: 1, Col: 2}, b.Clamp(Pos{Line: 1, Col: 7}))

	assert.Equal(t, 4, b.Offset(Pos{2, 1}))
	assert.Equal(t, Pos{2, 1}, b.PosAt(4))
	assert.Equal(t, Pos{1, 2}, b.PosAt(2))
	assert.Equal(t, Pos{2, 3}, b.PosAt(100))
}

func TestOffsetRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[ab\n]{0,40}`).Draw(t, "text")
		b := New(text)
		off := rapid.IntRange(0, len([]rune(text))).Draw(t, "off")
		if got := b.Offset(b.PosAt(off)); got != off {
			t.Fatalf("Offset(PosAt(%d)) = %d", off, got)
		}
	})
}

func TestInsertTagsAndChunks(t *testing.T) {
	b := New("")
	end := b.Insert(Pos{Line: 1},
		style.Chunk{Tag: "kw", Text: "if"},
		style.Chunk{Tag: style.NoStyle, Text: " x:\n    "},
		style.Chunk{Tag: "kw", Text: "pass"},
	)
	assert.Equal(t, Pos{Line: 2, Col: 8}, end)
	assert.Equal(t, "if x:\n    pass", b.Text())
	assert.Equal(t, style.Tag("kw"), b.TagAt(Pos{1, 0}))
	assert.Equal(t, style.NoStyle, b.TagAt(Pos{1, 5}), "newline carries its chunk's tag")
	assert.Equal(t, style.Tag("kw"), b.TagAt(Pos{2, 4}))
	assert.Equal(t, style.Tag(""), b.TagAt(b.End()))

	assert.Equal(t, []style.Chunk{
		{Tag: "kw", Text: "if"},
		{Tag: style.NoStyle, Text: " x:\n    "},
		{Tag: "kw", Text: "pass"},
	}, b.Chunks(Pos{Line: 1}, b.End()))

	assert.Equal(t, []style.StyleRun{
		{Name: "kw", Start: 0, End: 2},
		{Name: "kw", Start: 10, End: 14},
	}, b.SyntaxRuns())
}

func TestDeleteAcrossLines(t *testing.T) {
	b := New("one\ntwo\nthree")
	b.Delete(Pos{1, 2}, Pos{3, 1})
	assert.Equal(t, "onhree", b.Text())
	assert.Equal(t, 1, b.Lines())

	// Reversed endpoints are normalised.
	b.Delete(Pos{1, 4}, Pos{1, 2})
	assert.Equal(t, "onee", b.Text())
}

func TestCaretFollowsEdits(t *testing.T) {
	b := New("hello world")
	b.SetCaret(Pos{1, 6})

	b.InsertText(Pos{1, 0}, ">> ")
	assert.Equal(t, Pos{1, 9}, b.Caret())

	b.InsertText(Pos{1, 9}, "big ")
	assert.Equal(t, Pos{1, 13}, b.Caret(), "insert at the caret goes before it")

	b.Delete(Pos{1, 11}, Pos{1, 14})
	assert.Equal(t, Pos{1, 11}, b.Caret())

	b.Delete(Pos{1, 0}, Pos{1, 3})
	assert.Equal(t, Pos{1, 8}, b.Caret())
}

func TestNotifications(t *testing.T) {
	b := New("abc")
	var got []Change
	cancel := b.Subscribe(func(c Change) { got = append(got, c) })

	b.InsertText(Pos{1, 3}, "d")
	b.Delete(Pos{1, 0}, Pos{1, 1})
	b.SetCaret(Pos{1, 1})
	require.Len(t, got, 3)
	assert.Equal(t, KindInsert, got[0].Kind)
	assert.Equal(t, KindDelete, got[1].Kind)
	assert.Equal(t, KindCaret, got[2].Kind)
	assert.Equal(t, uint64(3), got[2].Version)

	got = nil
	b.Group(func() {
		b.Delete(Pos{1, 0}, Pos{1, 1})
		b.InsertText(Pos{1, 0}, "xy")
		b.Group(func() { b.SetCaret(Pos{1, 0}) })
	})
	require.Len(t, got, 1)
	assert.Equal(t, KindInsert|KindDelete|KindCaret, got[0].Kind)
	assert.Equal(t, "insert|delete|caret", got[0].Kind.String())

	cancel()
	got = nil
	b.InsertText(Pos{1, 0}, "z")
	assert.Empty(t, got)
}

func TestEachSubscriberOncePerChange(t *testing.T) {
	b := New("")
	var a, c int
	var cancelC func()
	b.Subscribe(func(Change) {
		a++
		// Unsubscribing during delivery does not skip the current change.
		cancelC()
	})
	cancelC = b.Subscribe(func(Change) { c++ })

	b.InsertText(Pos{Line: 1}, "x")
	b.InsertText(Pos{Line: 1}, "y")
	assert.Equal(t, 2, a)
	assert.Equal(t, 1, c)
}

func TestUndoRedo(t *testing.T) {
	b := New("abc")
	b.SetCaret(Pos{1, 3})
	b.InsertText(Pos{1, 3}, "def")
	b.Group(func() {
		b.Delete(Pos{1, 0}, Pos{1, 1})
		b.InsertText(Pos{1, 0}, "A")
	})
	assert.Equal(t, "Abcdef", b.Text())

	require.True(t, b.Undo())
	assert.Equal(t, "abcdef", b.Text())
	require.True(t, b.Undo())
	assert.Equal(t, "abc", b.Text())
	assert.Equal(t, Pos{1, 3}, b.Caret())
	assert.False(t, b.Undo())

	require.True(t, b.Redo())
	assert.Equal(t, "abcdef", b.Text())
	require.True(t, b.Redo())
	assert.Equal(t, "Abcdef", b.Text())
	assert.False(t, b.Redo())

	b.Undo()
	b.InsertText(Pos{1, 0}, "!")
	assert.False(t, b.CanRedo(), "a new edit discards the redo stack")
}

func TestUndoRedoNotifyOnce(t *testing.T) {
	b := New("")
	b.InsertText(Pos{Line: 1}, "a\nb")

	var got []Change
	cancel := b.Subscribe(func(c Change) { got = append(got, c) })
	defer cancel()

	require.True(t, b.Undo())
	require.Len(t, got, 1)
	assert.True(t, got[0].Kind.Has(KindDelete))
	assert.True(t, got[0].Kind.Has(KindCaret))
	assert.Equal(t, 1, b.Lines())

	require.True(t, b.Redo())
	require.Len(t, got, 2)
	assert.True(t, got[1].Kind.Has(KindInsert))
	assert.Equal(t, 2, b.Lines())
	assert.Equal(t, b.Version(), got[1].Version)
}

func TestUndoRestoresTags(t *testing.T) {
	b := New("")
	b.Insert(Pos{Line: 1}, style.Chunk{Tag: "kw", Text: "if"}, style.Chunk{Tag: style.NoStyle, Text: " x"})
	b.Delete(Pos{1, 0}, Pos{1, 4})
	b.Undo()
	assert.Equal(t, style.Tag("kw"), b.TagAt(Pos{1, 1}))
	assert.Equal(t, style.NoStyle, b.TagAt(Pos{1, 3}))
}

func TestRetagStaysOutOfHistory(t *testing.T) {
	b := New("")
	b.InsertText(Pos{Line: 1}, "if x")
	var n int
	b.Subscribe(func(Change) { n++ })

	b.Retag(func() {
		b.Delete(Pos{Line: 1}, b.End())
		b.Insert(Pos{Line: 1}, style.Chunk{Tag: "kw", Text: "if"}, style.Chunk{Tag: style.NoStyle, Text: " x"})
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, style.Tag("kw"), b.TagAt(Pos{1, 0}))

	require.True(t, b.Undo())
	assert.Equal(t, "", b.Text(), "undo skips the retag and reverts the typing")
}

func TestViewAndSee(t *testing.T) {
	b := New("1\n2\n3\n4\n5\n6\n7\n8")
	b.SetHeight(3)
	b.Scroll(Pos{Line: 2, Col: 1})
	assert.Equal(t, Pos{Line: 2, Col: 1}, b.View())

	b.See(Pos{Line: 7})
	assert.Equal(t, 5, b.View().Line)
	b.See(Pos{Line: 1})
	assert.Equal(t, 1, b.View().Line)

	b.Scroll(Pos{Line: 99})
	assert.Equal(t, 8, b.View().Line)
	b.Delete(Pos{Line: 4}, b.End())
	assert.Equal(t, 4, b.View().Line)
}

func TestSelectionMovesWithEdits(t *testing.T) {
	b := New("hello world")
	b.Select(Range{Pos{1, 11}, Pos{1, 6}})
	r, ok := b.Selection()
	require.True(t, ok)
	assert.Equal(t, Range{Pos{1, 6}, Pos{1, 11}}, r)

	b.InsertText(Pos{1, 0}, "oh ")
	r, _ = b.Selection()
	assert.Equal(t, "world", b.Get(r.Start, r.End))

	b.Delete(Pos{1, 9}, b.End())
	_, ok = b.Selection()
	assert.False(t, ok)

	b.Select(Range{Pos{1, 1}, Pos{1, 1}})
	_, ok = b.Selection()
	assert.False(t, ok)
}

func TestOverlaysAndFind(t *testing.T) {
	b := New("foo bar\nfoo")
	found := b.FindAll("foo")
	assert.Equal(t, []Range{{Pos{1, 0}, Pos{1, 3}}, {Pos{2, 0}, Pos{2, 3}}}, found)
	assert.Empty(t, b.FindAll(""))
	assert.Empty(t, b.FindAll("baz"))

	for _, r := range found {
		b.AddOverlay("search", r)
	}
	assert.Equal(t, []style.StyleRun{
		{Name: "search", Start: 0, End: 3},
		{Name: "search", Start: 8, End: 11},
	}, b.OverlayRuns("search"))

	b.InsertText(Pos{1, 0}, "é")
	assert.Equal(t, []Range{{Pos{1, 1}, Pos{1, 4}}, {Pos{2, 0}, Pos{2, 3}}}, b.Overlay("search"))

	b.ClearOverlay("search")
	assert.Empty(t, b.Overlay("search"))
}

func TestFindAllCountsRunes(t *testing.T) {
	b := New("λx λx")
	assert.Equal(t, []Range{{Pos{1, 1}, Pos{1, 2}}, {Pos{1, 4}, Pos{1, 5}}}, b.FindAll("x"))
}

func TestTagDefs(t *testing.T) {
	b := New("")
	b.TagConfigure(style.PaletteEntry{Name: "b", FG: "#000000"})
	b.TagConfigure(style.PaletteEntry{Name: "a", Bold: true})
	b.TagConfigure(style.PaletteEntry{Name: "b", FG: "#ffffff"})

	e, ok := b.TagDef("b")
	require.True(t, ok)
	assert.Equal(t, "#ffffff", e.FG)
	_, ok = b.TagDef("c")
	assert.False(t, ok)

	defs := b.TagDefs()
	require.Len(t, defs, 2)
	assert.Equal(t, style.Tag("a"), defs[0].Name)
}

func TestEditsPreserveText(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[ab\n]{0,20}`).Draw(t, "text")
		b := New(text)
		model := []rune(text)
		for i := 0; i < 10; i++ {
			off := rapid.IntRange(0, len(model)).Draw(t, "off")
			if rapid.Bool().Draw(t, "insert") {
				s := rapid.StringMatching(`[xy\n]{1,4}`).Draw(t, "s")
				b.InsertText(b.PosAt(off), s)
				model = append(model[:off], append([]rune(s), model[off:]...)...)
			} else {
				end := rapid.IntRange(off, len(model)).Draw(t, "end")
				b.Delete(b.PosAt(off), b.PosAt(end))
				model = append(model[:off], model[end:]...)
			}
			if b.Text() != string(model) {
				t.Fatalf("got %q, want %q", b.Text(), string(model))
			}
		}
		for b.Undo() {
		}
		if b.Text() != text {
			t.Fatalf("undo all: got %q, want %q", b.Text(), text)
		}
	})
}

func TestHistoryLimit(t *testing.T) {
	b := New("")
	b.SetHistoryLimit(2)
	for _, s := range []string{"a", "b", "c"} {
		b.InsertText(b.End(), s)
	}
	assert.True(t, b.Undo())
	assert.True(t, b.Undo())
	assert.False(t, b.Undo())
	assert.Equal(t, "a", b.Text())

	b.SetHistoryLimit(0)
	b.InsertText(b.End(), "z")
	assert.False(t, b.CanUndo())
}
