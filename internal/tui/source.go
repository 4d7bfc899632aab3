package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// lineCount returns the number of lines the editor would show for text.
// Empty text still occupies one line.
func lineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

// numberLines renders text with a right-aligned line-number gutter, showing at
// most limit lines starting at offset.
func numberLines(text string, offset, limit int) string {
	lines := strings.Split(text, "\n")
	width := len(strconv.Itoa(len(lines)))

	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		offset = len(lines) - 1
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := offset; i < end; i++ {
		gutter := gutterStyle.Render(fmt.Sprintf("%*d │", width, i+1))
		sb.WriteString(" " + gutter + " " + lines[i] + "\n")
	}
	return sb.String()
}
