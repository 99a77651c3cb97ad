package core

import "testing"

func TestConsoleAppendTrimsToMax(t *testing.T) {
	c := newConsole(3)
	c.Append("1", "2", "3", "4", "5")
	view := c.Snapshot(0)
	if view.TotalLines != 3 {
		t.Fatalf("expected 3 lines after trim, got %d", view.TotalLines)
	}
	if view.Lines[0] != "3" || view.Lines[2] != "5" {
		t.Fatalf("unexpected window: %+v", view.Lines)
	}
}

func TestConsoleScrollAnchorsView(t *testing.T) {
	c := newConsole(100)
	for i := 0; i < 10; i++ {
		c.Append("line")
	}
	c.Scroll(4, 3)
	view := c.Snapshot(3)
	if view.ScrollOffset != 4 || view.AtBottom {
		t.Fatalf("expected offset 4 above bottom, got %+v", view)
	}
	// Appending while scrolled keeps the viewport anchored.
	c.Append("new")
	view = c.Snapshot(3)
	if view.ScrollOffset != 5 {
		t.Fatalf("expected offset 5 after append, got %d", view.ScrollOffset)
	}
	c.Scroll(-100, 3)
	view = c.Snapshot(3)
	if !view.AtBottom || view.ScrollOffset != 0 {
		t.Fatalf("expected clamp to bottom, got %+v", view)
	}
}

func TestConsoleScrollClampsAtTop(t *testing.T) {
	c := newConsole(100)
	for i := 0; i < 5; i++ {
		c.Append("line")
	}
	c.Scroll(1000, 2)
	view := c.Snapshot(2)
	if view.ScrollOffset != 3 {
		t.Fatalf("expected clamp to max offset 3, got %d", view.ScrollOffset)
	}
}

func TestConsoleResetDropsLines(t *testing.T) {
	c := newConsole(100)
	c.Append("a", "b")
	c.Scroll(1, 1)
	c.Reset()
	view := c.Snapshot(0)
	if view.TotalLines != 0 || !view.AtBottom {
		t.Fatalf("expected empty console, got %+v", view)
	}
}

func TestConsoleSnapshotWindow(t *testing.T) {
	c := newConsole(100)
	c.Append("1", "2", "3", "4", "5")
	view := c.Snapshot(2)
	if len(view.Lines) != 2 || view.Lines[0] != "4" || view.Lines[1] != "5" {
		t.Fatalf("unexpected viewport: %+v", view.Lines)
	}
	if view.TotalLines != 5 {
		t.Fatalf("expected total 5, got %d", view.TotalLines)
	}
}
