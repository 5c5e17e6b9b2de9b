package protocol

// userColors is the palette the server assigns from, round-robin by join
// order. Stable for the lifetime of a connection.
var userColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57",
	"#FF9FF3", "#54A0FF", "#48DBFB", "#A29BFE", "#FD79A8",
}

// DefaultCursorColor is used for a cursor whose owner has not been announced
// yet (a CursorUpdate can race ahead of its UserJoined).
const DefaultCursorColor = "#000000"

// ColorForIndex returns the palette color for the i-th participant to join.
func ColorForIndex(i int) string {
	if i < 0 {
		i = -i
	}
	return userColors[i%len(userColors)]
}
