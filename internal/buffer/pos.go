package buffer

import "fmt"

// Pos is a position in a Buffer.  Line is 1-based, Col is a 0-based rune
// index within the line.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d.%d", p.Line, p.Col) }

// Less reports whether p is before q.
func (p Pos) Less(q Pos) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

// Range is the half-open span [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

// Empty reports whether r covers no text.
func (r Range) Empty() bool { return r.Start == r.End }

// Normalize orders the endpoints of r.
func (r Range) Normalize() Range {
	if r.End.Less(r.Start) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func (r Range) String() string { return r.Start.String() + "-" + r.End.String() }
