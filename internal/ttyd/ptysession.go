package ttyd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ptySession owns the master side of a PTY and the child process running
// under it. One ptySession backs exactly one client connection.
//
// Output from the child reaches the client through a single-slot channel
// instead of the mutex+condvar STATE_INIT/READY/DONE handoff the original C
// server uses: the reader goroutine blocks sending on outputCh while its one
// slot is full, and the client's writer goroutine empties it, which gives the same
// one-chunk-at-a-time backpressure with less code.
type ptySession struct {
	ptyFile *os.File
	cmd     *exec.Cmd

	rows, cols uint16

	outputCh chan []byte
	done     chan struct{}
	readerWg sync.WaitGroup

	tapsMu sync.Mutex
	taps   []chan []byte

	exitSignal syscall.Signal

	logger *slog.Logger
}

// spawnConfig describes the command to run under the PTY.
type spawnConfig struct {
	Argv       []string
	Env        []string
	TermType   string
	ExitSignal syscall.Signal
}

func newPTYSession(rows, cols uint16, logger *slog.Logger) *ptySession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ptySession{
		rows:     rows,
		cols:     cols,
		outputCh: make(chan []byte, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// spawn starts the command under the PTY and launches the reader goroutine.
// Grounded on protocol.c's thread_run_command: the child's environment gets
// TERM set before exec, and the PTY is created at the client's current
// window size so no resize is needed immediately after spawn.
func (s *ptySession) spawn(cfg spawnConfig) error {
	if len(cfg.Argv) == 0 {
		return fmt.Errorf("ttyd: spawn requires a non-empty argv")
	}

	cmd := exec.Command(cfg.Argv[0], cfg.Argv[1:]...)
	env := append(os.Environ(), cfg.Env...)
	if cfg.TermType != "" {
		env = append(env, "TERM="+cfg.TermType)
	}
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: s.rows, Cols: s.cols})
	if err != nil {
		return fmt.Errorf("ttyd: spawn %q: %w", cfg.Argv[0], err)
	}

	s.ptyFile = ptmx
	s.cmd = cmd
	s.exitSignal = cfg.ExitSignal

	s.readerWg.Add(1)
	go s.readerLoop()

	s.logger.Info("pty spawned", "argv", cfg.Argv)
	return nil
}

// readerLoop reads from the PTY and forwards each chunk over outputCh. It
// exits on read error (including EOF, the normal "child exited" signal) or
// when done is closed.
func (s *ptySession) readerLoop() {
	defer s.readerWg.Done()
	defer s.closeAllOutputs()

	buf := make([]byte, 4096)
	for {
		n, err := s.ptyFile.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.outputCh <- chunk:
			case <-s.done:
				return
			}
			s.fanOutToTaps(chunk)
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("pty read error", "error", err)
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
	}
}

func (s *ptySession) fanOutToTaps(chunk []byte) {
	s.tapsMu.Lock()
	defer s.tapsMu.Unlock()
	for _, tap := range s.taps {
		select {
		case tap <- chunk:
		default:
			// Supplemental consumer (transcript recorder) is slow; drop
			// rather than apply backpressure to the primary client path.
		}
	}
}

func (s *ptySession) closeAllOutputs() {
	close(s.outputCh)
	s.tapsMu.Lock()
	defer s.tapsMu.Unlock()
	for _, tap := range s.taps {
		close(tap)
	}
}

// output returns the channel the reader goroutine delivers chunks on. The
// channel closes when the child's output is exhausted.
func (s *ptySession) output() <-chan []byte {
	return s.outputCh
}

// addTranscriptTap registers a new buffered consumer of PTY output,
// independent of the primary output() channel, for the optional transcript
// recorder (see transcript.go).
func (s *ptySession) addTranscriptTap() <-chan []byte {
	s.tapsMu.Lock()
	defer s.tapsMu.Unlock()
	tap := make(chan []byte, 16)
	s.taps = append(s.taps, tap)
	return tap
}

// write sends client input to the child's stdin.
func (s *ptySession) write(p []byte) (int, error) {
	if s.ptyFile == nil {
		return 0, fmt.Errorf("ttyd: pty not spawned")
	}
	return s.ptyFile.Write(p)
}

// resize changes the PTY window size, matching protocol.c's
// parse_window_size + ioctl(TIOCSWINSZ) handling of RESIZE_TERMINAL.
func (s *ptySession) resize(rows, cols uint16) error {
	s.rows, s.cols = rows, cols
	if s.ptyFile == nil {
		return nil
	}
	return pty.Setsize(s.ptyFile, &pty.Winsize{Rows: rows, Cols: cols})
}

// kill signals the reader to stop, terminates the child, and waits for
// both the process and the reader goroutine to finish, mirroring
// internal/pty.Session.Kill's close(done) -> Process signal -> Wait ->
// readerWg.Wait() order (which avoids zombies and a leaked goroutine).
func (s *ptySession) kill() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}

	if s.cmd != nil && s.cmd.Process != nil {
		sig := s.exitSignal
		if sig == 0 {
			sig = syscall.SIGHUP
		}
		if err := s.cmd.Process.Signal(sig); err != nil {
			s.logger.Warn("failed to signal child", "error", err)
		}
		_, _ = s.cmd.Process.Wait()
	}

	if s.ptyFile != nil {
		s.ptyFile.Close()
	}

	s.readerWg.Wait()
	return nil
}
