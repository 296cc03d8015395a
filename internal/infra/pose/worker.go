// Package pose runs the pose landmark model in a child process and exchanges
// frames and landmarks with it over stdin/stdout.
package pose

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/opencv"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	ErrWorkerClosed = fmt.Errorf("pose worker closed: %w", port.ErrEstimatorUnavailable)
	ErrWorkerBroken = fmt.Errorf("pose worker broken: %w", port.ErrEstimatorUnavailable)
)

type Config struct {
	Command      string
	Args         []string
	Env          []string
	StartTimeout time.Duration
	FrameTimeout time.Duration
	StopTimeout  time.Duration
	JPEGQuality  int
}

func (c Config) withDefaults() Config {
	if c.StartTimeout <= 0 {
		c.StartTimeout = 30 * time.Second
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 10 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 2 * time.Second
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 90
	}
	return c
}

// Worker is a running pose model process. Calls are serialized; an analyzer
// uses it from a single goroutine anyway.
type Worker struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	mu     sync.Mutex
	seq    uint64
	closed bool
	broken bool
	exited chan struct{}
	model  string
}

// Factory returns a PoseEstimatorFactory that starts one worker process per
// estimator.
func Factory(cfg Config, logger *zap.Logger) port.PoseEstimatorFactory {
	return func(opts port.PoseOptions) (port.PoseEstimator, error) {
		return Start(cfg, opts, logger)
	}
}

// OptionArgs renders the model options as worker command line flags.
func OptionArgs(opts port.PoseOptions) []string {
	args := []string{
		"--model-complexity", strconv.Itoa(opts.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(opts.MinDetectionConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(opts.MinTrackingConfidence, 'f', 2, 64),
	}
	if opts.StaticImageMode {
		args = append(args, "--static-image-mode")
	}
	if opts.SmoothLandmarks {
		args = append(args, "--smooth-landmarks")
	}
	if opts.EnableSegmentation {
		args = append(args, "--enable-segmentation")
	}
	return args
}

// Start spawns the worker and waits for it to report that the model is loaded.
func Start(cfg Config, opts port.PoseOptions, logger *zap.Logger) (*Worker, error) {
	cfg = cfg.withDefaults()
	if cfg.Command == "" {
		return nil, errors.New("pose worker command is required")
	}

	args := append(append([]string{}, cfg.Args...), OptionArgs(opts)...)
	cmd := exec.Command(cfg.Command, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pose worker: %w", err)
	}

	w := &Worker{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logger: logger.With(zap.Int("pose_worker_pid", cmd.Process.Pid)),
		exited: make(chan struct{}),
	}
	go w.logStderr(stderr)
	go func() {
		err := cmd.Wait()
		if err != nil {
			w.logger.Debug("pose worker exited", zap.Error(err))
		}
		close(w.exited)
	}()

	ready := make(chan error, 1)
	go func() {
		var msg response
		if err := readMessage(w.stdout, &msg); err != nil {
			ready <- fmt.Errorf("read handshake: %w", err)
			return
		}
		if msg.Type != typeReady {
			ready <- fmt.Errorf("unexpected handshake message %q", msg.Type)
			return
		}
		w.model = msg.Model
		ready <- nil
	}()

	select {
	case err := <-ready:
		if err != nil {
			w.kill()
			return nil, err
		}
	case <-time.After(cfg.StartTimeout):
		w.kill()
		return nil, fmt.Errorf("pose worker not ready after %s", cfg.StartTimeout)
	}

	w.logger.Info("pose worker started",
		zap.String("command", cfg.Command),
		zap.String("model", w.model),
		zap.Strings("options", OptionArgs(opts)),
	)
	return w, nil
}

// Estimate sends one frame to the model. It returns nil keypoints when no body
// was found.
func (w *Worker) Estimate(ctx context.Context, frame gocv.Mat) (movement.Keypoints, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	img, err := opencv.EncodeJPEG(frame, w.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return w.estimateJPEG(ctx, frame.Cols(), frame.Rows(), img)
}

func (w *Worker) estimateJPEG(ctx context.Context, width, height int, img []byte) (movement.Keypoints, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWorkerClosed
	}
	if w.broken {
		return nil, ErrWorkerBroken
	}

	w.seq++
	req := estimateRequest{Type: typeEstimate, Seq: w.seq, Width: width, Height: height, Image: img}

	type outcome struct {
		resp response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		if err := writeMessage(w.stdin, req); err != nil {
			done <- outcome{err: err}
			return
		}
		var resp response
		err := readMessage(w.stdout, &resp)
		done <- outcome{resp: resp, err: err}
	}()

	timer := time.NewTimer(w.cfg.FrameTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			w.broken = true
			return nil, fmt.Errorf("%w: %v", ErrWorkerBroken, out.err)
		}
		if out.resp.Seq != req.Seq {
			w.broken = true
			return nil, fmt.Errorf("%w: response seq %d for request %d", ErrWorkerBroken, out.resp.Seq, req.Seq)
		}
		if out.resp.Error != "" {
			return nil, fmt.Errorf("pose model: %s", out.resp.Error)
		}
		if !out.resp.Found {
			return nil, nil
		}
		return movement.FromSlice(out.resp.Landmarks), nil
	case <-timer.C:
		w.broken = true
		w.kill()
		return nil, fmt.Errorf("%w: no response within %s", ErrWorkerBroken, w.cfg.FrameTimeout)
	case <-ctx.Done():
		w.broken = true
		w.kill()
		return nil, ctx.Err()
	}
}

// Close stops the worker: stdin is closed so it can exit on its own, and it is
// killed if it has not exited within the stop timeout.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}
	w.closed = true

	_ = w.stdin.Close()
	select {
	case <-w.exited:
	case <-time.After(w.cfg.StopTimeout):
		w.logger.Warn("pose worker did not exit, killing")
		w.kill()
		<-w.exited
	}
	w.logger.Info("pose worker released")
	return nil
}

func (w *Worker) kill() {
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

func (w *Worker) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			w.logger.Error("pose worker", zap.String("line", line))
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			w.logger.Warn("pose worker", zap.String("line", line))
		default:
			w.logger.Debug("pose worker", zap.String("line", line))
		}
	}
}
