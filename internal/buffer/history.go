package buffer

import (
	"slices"

	"github.com/cptaffe/acme-chroma/style"
)

type opKind uint8

const (
	opInsert opKind = iota
	opDelete
)

// op is one recorded primitive.  For inserts, [start, end) is the inserted
// range afterwards; for deletes, the removed range beforehand.
type op struct {
	kind       opKind
	start, end Pos
	chunks     []style.Chunk
}

type step struct {
	ops   []op
	caret Pos
}

type history struct {
	undo, redo []step
	cur        *step
	untracked  int
	limit      int // max undo steps kept; negative means unlimited
}

func (h *history) open(caret Pos) { h.cur = &step{caret: caret} }

func (h *history) close() {
	if h.cur != nil && len(h.cur.ops) > 0 {
		h.undo = append(h.undo, *h.cur)
		h.redo = nil
		if h.limit >= 0 && len(h.undo) > h.limit {
			h.undo = slices.Delete(h.undo, 0, len(h.undo)-h.limit)
		}
	}
	h.cur = nil
}

func (h *history) record(o op) {
	if h.untracked > 0 || h.cur == nil {
		return
	}
	h.cur.ops = append(h.cur.ops, o)
}

// SetHistoryLimit bounds the number of undo steps kept.  A negative limit,
// the default, keeps every step; zero disables history.
func (b *Buffer) SetHistoryLimit(n int) {
	b.hist.limit = n
	if n >= 0 && len(b.hist.undo) > n {
		b.hist.undo = slices.Delete(b.hist.undo, 0, len(b.hist.undo)-n)
	}
}

// CanUndo reports whether Undo would do anything.
func (b *Buffer) CanUndo() bool { return len(b.hist.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (b *Buffer) CanRedo() bool { return len(b.hist.redo) > 0 }

// Undo reverts the most recent recorded step.
func (b *Buffer) Undo() bool {
	n := len(b.hist.undo)
	if n == 0 {
		return false
	}
	s := b.hist.undo[n-1]
	b.hist.undo = b.hist.undo[:n-1]
	b.replay(func() {
		for i := len(s.ops) - 1; i >= 0; i-- {
			o := s.ops[i]
			switch o.kind {
			case opInsert:
				b.delete(o.start, o.end)
				b.changed(KindDelete)
			case opDelete:
				b.insert(o.start, o.chunks)
				b.changed(KindInsert)
			}
		}
		b.setCaret(s.caret)
		b.changed(KindCaret)
	})
	b.hist.redo = append(b.hist.redo, s)
	return true
}

// Redo reapplies the most recently undone step.
func (b *Buffer) Redo() bool {
	n := len(b.hist.redo)
	if n == 0 {
		return false
	}
	s := b.hist.redo[n-1]
	b.hist.redo = b.hist.redo[:n-1]
	var caret Pos
	b.replay(func() {
		for _, o := range s.ops {
			switch o.kind {
			case opInsert:
				caret = b.insert(o.start, o.chunks)
				b.changed(KindInsert)
			case opDelete:
				b.delete(o.start, o.end)
				b.changed(KindDelete)
				caret = o.start
			}
		}
		b.setCaret(caret)
		b.changed(KindCaret)
	})
	b.hist.undo = append(b.hist.undo, s)
	return true
}

// replay applies history outside of recording, as a single change.
func (b *Buffer) replay(fn func()) {
	b.hist.untracked++
	defer func() { b.hist.untracked-- }()
	b.begin()
	defer b.end()
	fn()
}
