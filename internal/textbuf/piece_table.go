package textbuf

type bufferKind int

const (
	bufOriginal bufferKind = iota
	bufAdd
)

// piece references a span of either the original or the add buffer.
type piece struct {
	buf    bufferKind
	offset int
	length int
}

// PieceTable is a piece-table text buffer: the original text and all inserted
// text live in append-only buffers; edits only rearrange the piece list.
// Suited to a document accumulating many small edits.
type PieceTable struct {
	original []rune
	add      []rune
	pieces   []piece
}

var _ Buffer = (*PieceTable)(nil)

func NewPieceTable(initial string) *PieceTable {
	r := []rune(initial)
	pt := &PieceTable{original: r}
	if len(r) > 0 {
		pt.pieces = []piece{{buf: bufOriginal, offset: 0, length: len(r)}}
	}
	return pt
}

func (pt *PieceTable) Len() int {
	n := 0
	for _, p := range pt.pieces {
		n += p.length
	}
	return n
}

func (pt *PieceTable) String() string {
	out := make([]rune, 0, pt.Len())
	for _, p := range pt.pieces {
		switch p.buf {
		case bufOriginal:
			out = append(out, pt.original[p.offset:p.offset+p.length]...)
		case bufAdd:
			out = append(out, pt.add[p.offset:p.offset+p.length]...)
		}
	}
	return string(out)
}

// Apply performs a position-based edit: delete deleteCount runes starting at
// position, then insert at position. Out-of-bounds values are clamped; the
// operation never fails.
func (pt *PieceTable) Apply(position, deleteCount int, insert string) {
	n := pt.Len()
	if position < 0 {
		position = 0
	}
	if position > n {
		position = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if position+deleteCount > n {
		deleteCount = n - position
	}

	if deleteCount > 0 {
		pt.deleteRange(position, position+deleteCount)
	}
	if insert != "" {
		pt.insertAt(position, insert)
	}
}

func (pt *PieceTable) insertAt(position int, text string) {
	r := []rune(text)
	start := len(pt.add)
	pt.add = append(pt.add, r...)
	ins := piece{buf: bufAdd, offset: start, length: len(r)}

	pieces := make([]piece, 0, len(pt.pieces)+2)
	cur := 0
	inserted := false
	for _, p := range pt.pieces {
		if !inserted && position <= cur {
			pieces = append(pieces, ins)
			inserted = true
		}
		if !inserted && position < cur+p.length {
			// Split this piece at the insertion point.
			head := position - cur
			pieces = append(pieces,
				piece{buf: p.buf, offset: p.offset, length: head},
				ins,
				piece{buf: p.buf, offset: p.offset + head, length: p.length - head},
			)
			inserted = true
		} else {
			pieces = append(pieces, p)
		}
		cur += p.length
	}
	if !inserted {
		pieces = append(pieces, ins)
	}
	pt.pieces = pieces
}

// deleteRange removes the logical rune range [start, end), already clamped by
// Apply. Pieces overlapping the range are trimmed or dropped.
func (pt *PieceTable) deleteRange(start, end int) {
	pieces := make([]piece, 0, len(pt.pieces)+1)
	cur := 0
	for _, p := range pt.pieces {
		pStart, pEnd := cur, cur+p.length
		cur = pEnd
		if pEnd <= start || pStart >= end {
			pieces = append(pieces, p)
			continue
		}
		if pStart < start {
			pieces = append(pieces, piece{buf: p.buf, offset: p.offset, length: start - pStart})
		}
		if pEnd > end {
			cut := end - pStart
			pieces = append(pieces, piece{buf: p.buf, offset: p.offset + cut, length: pEnd - end})
		}
	}
	pt.pieces = pieces
}
