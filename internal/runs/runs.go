// Package runs manipulates rune-offset style runs: keeping them aligned with
// buffer edits, composing layers of them, and finding what changed between
// two versions.
package runs

import (
	"slices"
	"sort"

	"github.com/cptaffe/acme-chroma/style"
)

// AdjustInsert moves runs to account for n runes inserted at q0.  A run
// containing q0 in its interior grows; a run starting at q0 moves right.
func AdjustInsert(runs []style.StyleRun, q0, n int) {
	for i := range runs {
		r := &runs[i]
		if r.Start >= q0 {
			r.Start += n
		}
		if r.End > q0 {
			r.End += n
		}
		r.End = max(r.End, r.Start)
	}
}

// AdjustDelete removes runes [q0, q1) from runs in place and returns the
// shortened slice.  Runs that lose all their runes are dropped.
func AdjustDelete(runs []style.StyleRun, q0, q1 int) []style.StyleRun {
	at := func(x int) int {
		switch {
		case x <= q0:
			return x
		case x >= q1:
			return x - (q1 - q0)
		}
		return q0
	}
	out := runs[:0]
	for _, r := range runs {
		r.Start, r.End = at(r.Start), at(r.End)
		if r.Start < r.End {
			out = append(out, r)
		}
	}
	return out
}

// Diff returns the rune interval [q0, q1) spanned by the runs that differ
// between old and new, which must both be sorted and disjoint.  changed is
// false when the slices are equal.
func Diff(old, new []style.StyleRun) (q0, q1 int, changed bool) {
	lo := 0
	for lo < len(old) && lo < len(new) && old[lo] == new[lo] {
		lo++
	}
	ho, hn := len(old), len(new)
	for ho > lo && hn > lo && old[ho-1] == new[hn-1] {
		ho--
		hn--
	}
	for _, r := range slices.Concat(old[lo:ho], new[lo:hn]) {
		if !changed || r.Start < q0 {
			q0 = r.Start
		}
		if !changed || r.End > q1 {
			q1 = r.End
		}
		changed = true
	}
	if !changed || q0 >= q1 {
		return 0, 0, false
	}
	return q0, q1, true
}

// Compose merges layers into a sorted, non-overlapping slice.  Later layers
// occlude earlier ones where they overlap; runs with an empty name or no
// extent are ignored.
func Compose(layers ...[]style.StyleRun) []style.StyleRun {
	type event struct {
		pos   int
		layer int
		name  style.Tag
		isEnd bool
	}
	var events []event
	for li, l := range layers {
		for _, r := range l {
			if r.End <= r.Start || r.Name == "" {
				continue
			}
			events = append(events, event{r.Start, li, r.Name, false})
			events = append(events, event{r.End, li, r.Name, true})
		}
	}
	if len(events) == 0 {
		return nil
	}

	// By position; at the same position, ends before starts.
	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		if events[i].isEnd != events[j].isEnd {
			return events[i].isEnd
		}
		return events[i].layer < events[j].layer
	})

	// active counts open runs per (layer, name) so that overlapping runs
	// within one layer close correctly.
	type key struct {
		layer int
		name  style.Tag
	}
	active := make(map[key]int)
	best := func() style.Tag {
		var b style.Tag
		bl := -1
		for k, n := range active {
			if n > 0 && (k.layer > bl || (k.layer == bl && k.name < b)) {
				b, bl = k.name, k.layer
			}
		}
		return b
	}

	var result []style.StyleRun
	var cur style.Tag
	curPos := 0
	for i := 0; i < len(events); {
		pos := events[i].pos
		if pos > curPos && cur != "" {
			if n := len(result); n > 0 && result[n-1].Name == cur && result[n-1].End == curPos {
				result[n-1].End = pos
			} else {
				result = append(result, style.StyleRun{Name: cur, Start: curPos, End: pos})
			}
		}
		for i < len(events) && events[i].pos == pos {
			ev := events[i]
			k := key{ev.layer, ev.name}
			if ev.isEnd {
				if active[k]--; active[k] <= 0 {
					delete(active, k)
				}
			} else {
				active[k]++
			}
			i++
		}
		curPos = pos
		cur = best()
	}
	return result
}
