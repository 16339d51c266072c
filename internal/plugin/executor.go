package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrUnsupportedAction is returned for actions missing from the manifest.
	ErrUnsupportedAction = errors.New("plugin does not support action")
	// ErrPluginFailed wraps the message of a Response with Success false.
	ErrPluginFailed = errors.New("plugin reported failure")
	// ErrTimeout is returned when the process outlives the executor timeout.
	ErrTimeout = errors.New("plugin timed out")
)

const (
	// maxStderr bounds the stderr excerpt attached to errors.
	maxStderr = 512
	// waitDelay caps the wait for output pipes held open by orphaned children.
	waitDelay = time.Second
)

// Executor starts plugin processes, one per call.
type Executor struct {
	timeout time.Duration
}

// NewExecutor returns an Executor that kills plugins after timeoutMs
// milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	return &Executor{timeout: time.Duration(timeoutMs) * time.Millisecond}
}

// Timeout returns the per-call deadline.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute sends req to a fresh process of p and decodes its reply. Cancelling
// ctx kills the process.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Dir
	cmd.WaitDelay = waitDelay
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, p.Name(), e.timeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runErr != nil:
		if msg := excerpt(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run plugin %s: %w: %s", p.Name(), runErr, msg)
		}
		return nil, fmt.Errorf("run plugin %s: %w", p.Name(), runErr)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode reply of %s: %w (output %q)", p.Name(), err, excerpt(stdout.String()))
	}
	return &resp, nil
}

// Call is a typed invocation: Config and Params are JSON-encoded into the
// Request when non-nil.
type Call struct {
	Action string
	Game   string
	Config any
	Params any
}

// Invoke checks that p supports the action, executes it and decodes the
// response data into out. out may be nil when the data is not needed.
func (e *Executor) Invoke(ctx context.Context, p *Plugin, call Call, out any) error {
	if !p.Manifest.Supports(call.Action) {
		return fmt.Errorf("%w: %s has no %q", ErrUnsupportedAction, p.Name(), call.Action)
	}

	req := &Request{Action: call.Action, Game: call.Game}
	var err error
	if req.Config, err = encodeOptional(call.Config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if req.Params, err = encodeOptional(call.Params); err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	resp, err := e.Execute(ctx, p, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s: %s", ErrPluginFailed, p.Name(), resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode data of %s: %w", p.Name(), err)
	}
	return nil
}

func encodeOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
