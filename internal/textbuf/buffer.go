package textbuf

// Buffer is a mutable text content buffer addressed by rune offset.
type Buffer interface {
	Len() int
	Apply(position, deleteCount int, insert string)
	String() string
}
