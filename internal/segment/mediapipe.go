package segment

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	segmentScript = "segment_service.py"
	idleShutdown  = 30 * time.Second
)

// ErrScriptNotFound is returned when the segmentation service script is missing.
var ErrScriptNotFound = errors.New(segmentScript + " not found")

// MediaPipeSegmenter implements Segmenter using a Python MediaPipe
// selfie-segmentation subprocess. Frames are written to the process as
// length-prefixed JPEG and each answer is one JSON line.
type MediaPipeSegmenter struct {
	config    Config
	script    string
	newCmd    func() *exec.Cmd
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeSegmenter creates a new MediaPipe segmenter.
// The Python process is started lazily on first use.
func NewMediaPipeSegmenter(config Config) (*MediaPipeSegmenter, error) {
	script := findScript()
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = DefaultConfig().MinConfidence
	}
	s := &MediaPipeSegmenter{config: config, script: script}
	s.newCmd = s.pythonCommand
	return s, nil
}

func (s *MediaPipeSegmenter) pythonCommand() *exec.Cmd {
	python := findVenvPython()
	if python == "" {
		python = "python3"
	}
	return exec.Command(python, s.script)
}

type segmentResponse struct {
	Person   bool      `json:"person"`
	SkinTone *SkinTone `json:"skin_tone"`
	Error    string    `json:"error,omitempty"`
}

// Segment implements Segmenter.
func (s *MediaPipeSegmenter) Segment(ctx context.Context, frame *gocv.Mat) (*SkinTone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	binary.BigEndian.PutUint32(header[4:], uint32(s.config.MinConfidence*100))

	// A stalled service is killed when ctx ends so blocked pipe I/O returns.
	proc := s.cmd.Process
	stop := context.AfterFunc(ctx, func() { proc.Kill() })
	defer stop()

	if _, err := s.stdin.Write(header); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := s.stdin.Write(data); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := s.stdout.ReadString('\n')
	stop()
	if err != nil {
		s.shutdown()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp segmentResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		// The stream is out of step with the framing from here on.
		s.shutdown()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("segment service: %s", resp.Error)
	}

	s.resetIdleTimer()

	if !resp.Person || resp.SkinTone == nil {
		return nil, nil
	}
	return resp.SkinTone, nil
}

// Close shuts down the Python process.
func (s *MediaPipeSegmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown()
}

func (s *MediaPipeSegmenter) ensureStarted() error {
	if s.started {
		return nil
	}

	s.cmd = s.newCmd()

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start segment service: %w", err)
	}

	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.started = true
	return nil
}

func (s *MediaPipeSegmenter) shutdown() error {
	if !s.started {
		return nil
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.started = false
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil
	return err
}

func (s *MediaPipeSegmenter) resetIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(idleShutdown, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.shutdown()
	})
}

func findScript() string {
	return firstExisting(
		filepath.Join("scripts", segmentScript),
		filepath.Join("..", "scripts", segmentScript),
		filepath.Join(execDir(), "scripts", segmentScript),
		filepath.Join(os.Getenv("HOME"), ".inkcam", "scripts", segmentScript),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory or the executable.
func findVenvPython() string {
	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir(), "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".inkcam/venv/bin/python"),
	)
}

func execDir() string {
	path, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(path)
}

func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
