package protocol

// ApplyText applies a position-based edit to content and returns the result:
// delete deleteCount characters starting at position, then insert at position.
// Positions are rune offsets. Out-of-bounds position and delete values are
// clamped into range before slicing; the wire carries no integrity check, so
// a stale or malformed operation must never panic.
func ApplyText(content string, position, deleteCount int, insert string) string {
	r := []rune(content)
	if position < 0 {
		position = 0
	}
	if position > len(r) {
		position = len(r)
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	end := position + deleteCount
	if end > len(r) {
		end = len(r)
	}

	ins := []rune(insert)
	out := make([]rune, 0, len(r)-(end-position)+len(ins))
	out = append(out, r[:position]...)
	out = append(out, ins...)
	out = append(out, r[end:]...)
	return string(out)
}

// ClampCursor bounds a cursor offset to the current content length. Remote
// cursors can reference positions past the end after a concurrent delete.
func ClampCursor(position int, content string) int {
	if position < 0 {
		return 0
	}
	if n := len([]rune(content)); position > n {
		return n
	}
	return position
}
