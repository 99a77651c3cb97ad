package core

import "orbyte.systems/orbyte/schema"

// consoleView is a snapshot of a console's visible state.
type consoleView struct {
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}

const defaultConsoleMax = schema.DefaultConsoleMaxLines

// console stores per-script output lines and scroll state.
// ScrollOffset is the number of lines from the bottom; 0 means at bottom.
type console struct {
	lines        []string
	scrollOffset int
	maxLines     int
}

func newConsole(maxLines int) *console {
	if maxLines <= 0 {
		maxLines = defaultConsoleMax
	}
	return &console{maxLines: maxLines}
}

// Append adds lines to the console. If the view is scrolled up, the scroll
// offset is increased to keep the view anchored.
func (c *console) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	c.lines = append(c.lines, lines...)
	if c.scrollOffset > 0 {
		c.scrollOffset += len(lines)
	}
	if len(c.lines) > c.maxLines {
		trim := len(c.lines) - c.maxLines
		c.lines = c.lines[trim:]
		if c.scrollOffset > len(c.lines) {
			c.scrollOffset = len(c.lines)
		}
		if c.scrollOffset < 0 {
			c.scrollOffset = 0
		}
	}
}

// Reset drops all lines and returns the view to the bottom.
func (c *console) Reset() {
	c.lines = nil
	c.scrollOffset = 0
}

// Scroll adjusts the scroll offset by delta. Positive delta scrolls up
// (older lines), negative delta scrolls down. Limit is the viewport height.
func (c *console) Scroll(delta, limit int) {
	c.scrollOffset = clampScroll(c.scrollOffset+delta, len(c.lines), limit)
}

// Snapshot returns a view of the console for the given viewport limit.
func (c *console) Snapshot(limit int) consoleView {
	total := len(c.lines)
	if limit <= 0 || limit > total {
		limit = total
	}

	max := maxScroll(total, limit)
	if c.scrollOffset > max {
		c.scrollOffset = max
	}

	end := total - c.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, end-start)
	copy(lines, c.lines[start:end])

	return consoleView{
		Lines:        lines,
		TotalLines:   total,
		ScrollOffset: c.scrollOffset,
		AtBottom:     c.scrollOffset == 0,
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	if total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	max := maxScroll(total, limit)
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}
