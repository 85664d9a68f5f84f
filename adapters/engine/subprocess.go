package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal"
	"ringstat/internal/errors"
	"ringstat/ports"
)

const maxLineBytes = 256 << 20

// Subprocess talks to an external topology bridge over JSON lines on
// stdin/stdout. Every diagram request and every coordinate session runs in
// its own process, so concurrent trials never share a pipe.
type Subprocess struct {
	command string
	args    []string
	env     []string
	prime   int
	logger  *internal.Logger
}

var (
	_ ports.PersistenceEngine = (*Subprocess)(nil)
	_ ports.CoordinateEngine  = (*Subprocess)(nil)
)

// NewSubprocess creates an engine that starts command with args for each request
func NewSubprocess(command string, args ...string) *Subprocess {
	return &Subprocess{
		command: command,
		args:    args,
		prime:   ports.DefaultCoordinatePrime,
		logger:  internal.DefaultLogger.For("Engine"),
	}
}

// WithEnv appends environment entries for the child process
func (s *Subprocess) WithEnv(env ...string) *Subprocess {
	s.env = append(s.env, env...)
	return s
}

// WithCoordinatePrime sets the field used by coordinate sessions
func (s *Subprocess) WithCoordinatePrime(p int) *Subprocess {
	if p > 1 {
		s.prime = p
	}
	return s
}

// ComputeDiagrams runs one "diagrams" exchange and waits for the bridge to exit
func (s *Subprocess) ComputeDiagrams(ctx context.Context, m activity.Matrix, maxDim, coefficientField, landmarks int) ([]persistence.Diagram, error) {
	proc, err := s.start(ctx)
	if err != nil {
		return nil, err
	}
	defer proc.stop()

	resp, err := proc.exchange(request{
		Op:     opDiagrams,
		Points: m.Points(),
		MaxDim: maxDim,
		Coeff:  coefficientField,
		NPerm:  landmarks,
	})
	if err != nil {
		return nil, err
	}
	diagrams, err := decodeDiagrams(resp.Diagrams)
	if err != nil {
		return nil, errors.EngineError(s.command, err)
	}
	if len(diagrams) != maxDim+1 {
		return nil, errors.EngineError(s.command, fmt.Errorf("expected %d diagrams, got %d", maxDim+1, len(diagrams)))
	}
	s.logger.Debug("computed diagrams for %d points (H1 has %d features)", m.Timepoints(), len(diagrams[min(1, maxDim)]))
	return diagrams, nil
}

// Open starts a bridge process, sends the point cloud, and keeps the process
// alive for coordinate requests until Close.
func (s *Subprocess) Open(ctx context.Context, m activity.Matrix, landmarks int) (ports.CoordinateSession, error) {
	proc, err := s.start(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := proc.exchange(request{
		Op:     opCircular,
		Points: m.Points(),
		Coeff:  s.prime,
		NPerm:  landmarks,
	})
	if err != nil {
		proc.stop()
		return nil, err
	}
	dgm, err := resp.Diagram.decode()
	if err != nil {
		proc.stop()
		return nil, errors.EngineError(s.command, err)
	}
	return &subprocessSession{proc: proc, dgm: dgm, points: m.Timepoints()}, nil
}

type subprocessSession struct {
	mu     sync.Mutex
	proc   *process
	dgm    persistence.Diagram
	points int
	closed bool
}

func (s *subprocessSession) Diagram() persistence.Diagram {
	return s.dgm
}

func (s *subprocessSession) CoordinatesFor(ctx context.Context, featureIndices []int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.InternalError("coordinate session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := s.proc.exchange(request{Op: opCoordinates, Cocycles: featureIndices})
	if err != nil {
		return nil, err
	}
	if len(resp.Coordinates) != s.points {
		return nil, errors.EngineError(s.proc.name, fmt.Errorf("got %d coordinates for %d points", len(resp.Coordinates), s.points))
	}
	return resp.Coordinates, nil
}

func (s *subprocessSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.proc.send(request{Op: opClose})
	return s.proc.stop()
}

// process is one running bridge
type process struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *tailBuffer

	exited  bool
	exitErr error
}

// tailBuffer collects child stderr; the exec copy goroutine writes while
// error paths read.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *Subprocess) start(ctx context.Context) (*process, error) {
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.EngineError(s.command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.EngineError(s.command, err)
	}
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.EngineError(s.command, fmt.Errorf("failed to start: %w", err))
	}
	return &process{
		name:   s.command,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 1<<20),
		stderr: stderr,
	}, nil
}

func (p *process) send(req request) error {
	line, err := json.Marshal(req)
	if err != nil {
		return errors.InternalError(fmt.Sprintf("failed to encode %s request: %v", req.Op, err))
	}
	line = append(line, '\n')
	if _, err := p.stdin.Write(line); err != nil {
		p.wait()
		return errors.EngineError(p.name, fmt.Errorf("write %s request: %w%s", req.Op, err, p.stderrTail()))
	}
	return nil
}

func (p *process) exchange(req request) (response, error) {
	if err := p.send(req); err != nil {
		return response{}, err
	}
	line, err := p.readLine()
	if err != nil {
		p.wait()
		return response{}, errors.EngineError(p.name, fmt.Errorf("read %s response: %w%s", req.Op, err, p.stderrTail()))
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return response{}, errors.EngineError(p.name, fmt.Errorf("decode %s response: %w", req.Op, err))
	}
	if resp.Error != "" {
		return response{}, errors.EngineError(p.name, fmt.Errorf("%s: %s", req.Op, resp.Error))
	}
	return resp, nil
}

func (p *process) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := p.stdout.ReadLine()
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLineBytes {
			return nil, fmt.Errorf("response exceeds %d bytes", maxLineBytes)
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

// wait closes stdin and reaps the process once; stderr is complete afterwards
func (p *process) wait() error {
	if !p.exited {
		p.stdin.Close()
		p.exitErr = p.cmd.Wait()
		p.exited = true
	}
	return p.exitErr
}

func (p *process) stop() error {
	if err := p.wait(); err != nil {
		return errors.EngineError(p.name, fmt.Errorf("%w%s", err, p.stderrTail()))
	}
	return nil
}

func (p *process) stderrTail() string {
	msg := strings.TrimSpace(p.stderr.String())
	if msg == "" {
		return ""
	}
	if len(msg) > 512 {
		msg = "..." + msg[len(msg)-512:]
	}
	return ": " + msg
}
