package domain

import (
	"strings"
	"time"
)

// Rendering heuristic used to approximate a pixel position from a line and
// column. Intentionally crude: real editors use font metrics, this mirrors a
// fixed-size monospace assumption.
const (
	CursorLineHeight = 20
	CursorCharWidth  = 8
)

// CursorPosition is 1-indexed in both dimensions.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Cursor documents are keyed by user ID inside each room's cursor collection.
type Cursor struct {
	UserID      string         `json:"user_id"`
	Position    CursorPosition `json:"position"`
	DisplayName string         `json:"display_name"`
	LastUpdated time.Time      `json:"last_updated"`
}

// PositionFromOffset converts a byte offset into the text to a line/column
// pair by counting newlines before the offset.
func PositionFromOffset(text string, offset int) CursorPosition {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	lines := strings.Split(text[:offset], "\n")
	return CursorPosition{
		Line:   len(lines),
		Column: len(lines[len(lines)-1]) + 1,
	}
}

// ApproximatePixel maps a position to screen coordinates using the fixed
// line-height and character-width heuristic.
func (p CursorPosition) ApproximatePixel() (x, y int) {
	return (p.Column - 1) * CursorCharWidth, (p.Line - 1) * CursorLineHeight
}
