// Package vt100 tracks terminal screen state for ttyhub's optional
// transcript recorder. It wraps github.com/charmbracelet/x/vt, which
// properly handles the alternate screen buffer, in-place redraws, and
// full VT100/xterm-256color escape sequences, so a recorder can turn a
// raw PTY byte stream into the plain text actually shown on screen.
package vt100

import (
	"hash/fnv"
	"sync"

	"github.com/charmbracelet/x/vt"
)

// Parser wraps the charmbracelet/x/vt terminal emulator.
type Parser struct {
	mu   sync.Mutex
	term vt.Terminal

	rows, cols int
}

// New creates a new VT100 parser with the specified dimensions.
func New(rows, cols uint16) *Parser {
	return &Parser{
		term: vt.NewSafeEmulator(int(cols), int(rows)),
		rows: int(rows),
		cols: int(cols),
	}
}

// Process feeds bytes to the terminal emulator.
func (p *Parser) Process(data []byte) {
	p.term.Write(data)
}

// Size returns the current rows, cols the parser was created or resized to.
func (p *Parser) Size() (rows, cols int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows, p.cols
}

// SetSize resizes the terminal, keeping the emulator's model of the screen
// in sync with RESIZE_TERMINAL frames.
func (p *Parser) SetSize(rows, cols uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rows, p.cols = int(rows), int(cols)
	p.term.Resize(int(cols), int(rows))
}

// GetScreen returns the visible screen as plain-text lines, no ANSI.
func (p *Parser) GetScreen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	lines := make([]string, p.rows)
	for y := 0; y < p.rows; y++ {
		var line []rune
		for x := 0; x < p.cols; x++ {
			cell := p.term.CellAt(x, y)
			if cell != nil && cell.Content != "" {
				runes := []rune(cell.Content)
				line = append(line, runes[0])
			} else {
				line = append(line, ' ')
			}
		}
		lines[y] = string(line)
	}
	return lines
}

// GetScreenHash computes a hash of the visible screen plus cursor position,
// used by the transcript recorder to skip flushing an unchanged screen.
func (p *Parser) GetScreenHash() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := fnv.New64a()
	for y := 0; y < p.rows; y++ {
		for x := 0; x < p.cols; x++ {
			cell := p.term.CellAt(x, y)
			if cell != nil && cell.Content != "" {
				h.Write([]byte(cell.Content))
			}
		}
	}
	pos := p.term.CursorPosition()
	h.Write([]byte{byte(pos.Y), byte(pos.X)})
	return h.Sum64()
}
