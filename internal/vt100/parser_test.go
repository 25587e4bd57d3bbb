package vt100

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	p := New(24, 80)

	rows, cols := p.Size()
	if rows != 24 {
		t.Errorf("rows = %d, want 24", rows)
	}
	if cols != 80 {
		t.Errorf("cols = %d, want 80", cols)
	}
}

func TestProcess(t *testing.T) {
	p := New(24, 80)

	p.Process([]byte("Hello, World!"))

	screen := p.GetScreen()
	if !strings.Contains(screen[0], "Hello, World!") {
		t.Errorf("screen[0] = %q, want to contain 'Hello, World!'", screen[0])
	}
}

func TestProcessMultipleLines(t *testing.T) {
	p := New(24, 80)

	p.Process([]byte("Line 1\r\nLine 2\r\nLine 3"))

	screen := p.GetScreen()
	if !strings.Contains(screen[0], "Line 1") {
		t.Errorf("screen[0] = %q, want to contain 'Line 1'", screen[0])
	}
	if !strings.Contains(screen[1], "Line 2") {
		t.Errorf("screen[1] = %q, want to contain 'Line 2'", screen[1])
	}
	if !strings.Contains(screen[2], "Line 3") {
		t.Errorf("screen[2] = %q, want to contain 'Line 3'", screen[2])
	}
}

func TestSetSize(t *testing.T) {
	p := New(24, 80)
	p.SetSize(40, 120)

	rows, cols := p.Size()
	if rows != 40 {
		t.Errorf("rows = %d, want 40", rows)
	}
	if cols != 120 {
		t.Errorf("cols = %d, want 120", cols)
	}
}

func TestGetScreenHashChangesOnContent(t *testing.T) {
	p := New(24, 80)
	hash1 := p.GetScreenHash()

	p.Process([]byte("Some content"))
	hash2 := p.GetScreenHash()

	if hash1 == hash2 {
		t.Error("hash should change after processing content")
	}
}

func TestGetScreenHashStableAcrossEquivalentParsers(t *testing.T) {
	p1 := New(24, 80)
	p2 := New(24, 80)

	p1.Process([]byte("Same content"))
	p2.Process([]byte("Same content"))

	if p1.GetScreenHash() != p2.GetScreenHash() {
		t.Error("hash should be the same for identical content")
	}
}

func TestGetScreenHashStableWithoutNewInput(t *testing.T) {
	p := New(24, 80)
	p.Process([]byte("steady state"))

	hash1 := p.GetScreenHash()
	hash2 := p.GetScreenHash()
	if hash1 != hash2 {
		t.Error("hash should not change without new input")
	}
}

func TestANSIColorsDoNotBreakScreenText(t *testing.T) {
	p := New(24, 80)

	p.Process([]byte("\x1b[31mRed text\x1b[0m"))

	screen := p.GetScreen()
	if !strings.Contains(screen[0], "Red text") {
		t.Errorf("screen should contain 'Red text', got %q", screen[0])
	}
}
