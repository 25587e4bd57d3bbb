package ttyd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trybotster/ttyhub/internal/vt100"
)

// transcriptRecorder feeds a session's PTY output through a vt100 screen
// emulator and periodically appends the rendered plain-text screen to a
// log file, so control sequences (cursor moves, in-place redraws) collapse
// into final text instead of leaking raw escape codes. Supplemental
// feature, disabled unless Config.TranscriptDir is set; see DESIGN.md and
// SPEC_FULL.md §6.
type transcriptRecorder struct {
	parser   *vt100.Parser
	file     *os.File
	lastHash uint64
	logger   *slog.Logger
}

// startTranscript wires a transcriptRecorder to session's output channel.
// It consumes from a fan-out tee of the channel rather than the channel
// itself, since ptySession.output() is also read by the client's
// writeLoop; see (*ptySession).addTranscriptTap in ptysession.go.
func startTranscript(dir, sessionID string, session *ptySession, logger *slog.Logger) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Warn("failed to create transcript directory", "error", err)
		return
	}
	path := filepath.Join(dir, sessionID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger.Warn("failed to open transcript file", "error", err)
		return
	}

	rec := &transcriptRecorder{
		parser: vt100.New(session.rows, session.cols),
		file:   f,
		logger: logger,
	}

	tee := session.addTranscriptTap()
	go rec.run(tee)
}

// run consumes PTY output chunks, feeding them to the emulator and
// flushing the rendered screen to disk whenever it changes, on a 2-second
// cadence to bound write volume.
func (r *transcriptRecorder) run(chunks <-chan []byte) {
	defer r.file.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				r.flush()
				return
			}
			r.parser.Process(chunk)
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *transcriptRecorder) flush() {
	hash := r.parser.GetScreenHash()
	if hash == r.lastHash {
		return
	}
	r.lastHash = hash

	lines := r.parser.GetScreen()
	fmt.Fprintf(r.file, "--- %s ---\n%s\n", time.Now().UTC().Format(time.RFC3339), strings.Join(lines, "\n"))
}
