package buffer

import "sort"

// Kind describes what a change touched.  Coalesced changes OR their kinds.
type Kind uint8

const (
	KindInsert Kind = 1 << iota
	KindDelete
	KindCaret
	KindScroll
)

// Has reports whether k includes any of o.
func (k Kind) Has(o Kind) bool { return k&o != 0 }

func (k Kind) String() string {
	names := []struct {
		k Kind
		s string
	}{{KindInsert, "insert"}, {KindDelete, "delete"}, {KindCaret, "caret"}, {KindScroll, "scroll"}}
	s := ""
	for _, n := range names {
		if k.Has(n.k) {
			if s != "" {
				s += "|"
			}
			s += n.s
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Change is delivered to subscribers after a mutation completes.  Version
// increases by one per delivered change.
type Change struct {
	Kind    Kind
	Version uint64
}

// Subscribe registers fn to be called after every mutation, or once per
// outermost Group.  The returned func removes the subscription.
func (b *Buffer) Subscribe(fn func(Change)) (cancel func()) {
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() { delete(b.subs, id) }
}

// Group runs fn with notifications deferred; all mutations fn performs are
// reported as one change and undone as one step.
func (b *Buffer) Group(fn func()) {
	b.begin()
	defer b.end()
	fn()
}

// Retag runs fn like Group, but its mutations are kept out of the undo
// history.  fn must leave the text unchanged; only tags may differ.
func (b *Buffer) Retag(fn func()) {
	b.hist.untracked++
	defer func() { b.hist.untracked-- }()
	b.Group(fn)
}

func (b *Buffer) begin() {
	if b.depth == 0 {
		b.hist.open(b.caret)
	}
	b.depth++
}

func (b *Buffer) end() {
	b.depth--
	if b.depth > 0 {
		return
	}
	b.hist.close()
	if b.pending != 0 {
		b.flush()
	}
}

// changed records a primitive mutation.
func (b *Buffer) changed(k Kind) {
	b.pending |= k
	if b.depth == 0 {
		b.flush()
	}
}

func (b *Buffer) flush() {
	k := b.pending
	b.pending = 0
	b.version++
	ch := Change{Kind: k, Version: b.version}

	// Deliver to the subscribers present when the change completed, in
	// subscription order.
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), len(ids))
	for i, id := range ids {
		fns[i] = b.subs[id]
	}
	for _, fn := range fns {
		fn(ch)
	}
}
