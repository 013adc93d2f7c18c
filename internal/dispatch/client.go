package dispatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"polytrain/internal/logging"
	"polytrain/internal/services"
)

// Job describes one toolkit script invocation.
type Job struct {
	// Name labels the job in logs and errors (e.g. "mono/train").
	Name string
	// Script is the toolkit script path.
	Script string
	// Args are passed through to the script after dispatcher options.
	Args []string
	// Dir is the working directory for the submission; empty means the
	// process working directory.
	Dir string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for per-line script output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps dispatcher CLI interactions.
type Client struct {
	command string
	maxJobs int
	exec    Executor
	logger  *slog.Logger
}

// New constructs a dispatcher client.
func New(command string, maxJobs int, opts ...Option) (*Client, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("dispatcher command required")
	}
	if maxJobs <= 0 {
		maxJobs = 1
	}
	client := &Client{
		command: command,
		maxJobs: maxJobs,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Submit runs one job through the dispatcher and blocks until every sub-job
// has reported. A nonzero dispatcher exit is a step failure; inability to
// launch the dispatcher at all is an external tool error.
func (c *Client) Submit(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.Script) == "" {
		return services.Wrap(services.ErrConfiguration, "dispatch", "submit", "job script is empty", nil)
	}

	args := []string{"--max-jobs-run", strconv.Itoa(c.maxJobs), job.Script}
	args = append(args, job.Args...)

	logger := c.logger.With(logging.Args(logging.String(logging.FieldComponent, "dispatch"), logging.String("job", job.Name))...)
	logger.Debug("submitting job", logging.String("script", job.Script), logging.Int("max_jobs", c.maxJobs))

	err := c.exec.Run(ctx, job.Dir, c.command, args, func(line string) {
		logger.Debug(line)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrExternalTool, "dispatch", "submit",
			fmt.Sprintf("dispatcher command %q not found", c.command), err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return services.Wrap(services.ErrStep, "dispatch", job.Name, "dispatcher reported sub-job failure", err)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	forward := func(line string) {
		if onStdout != nil {
			onStdout(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
