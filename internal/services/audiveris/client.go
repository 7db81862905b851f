package audiveris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"omrpipe/internal/logging"
	"omrpipe/internal/outcome"
	"omrpipe/internal/services"
)

const (
	defaultExtension   = "mxl"
	defaultOutputLimit = 2000
	defaultTimeout     = 600 * time.Second
)

// ErrOutputBusy reports that another job holds the output directory lock.
var ErrOutputBusy = errors.New("output directory in use")

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

// WithLogger attaches a logger; conversions log under the "audiveris" component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "audiveris")
	}
}

// WithExtension sets the artifact extension (without a leading dot).
func WithExtension(ext string) Option {
	return func(c *Client) {
		if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
			c.ext = ext
		}
	}
}

// WithJVMOptions exports the given value to the engine as JAVA_OPTS.
func WithJVMOptions(value string) Option {
	return func(c *Client) {
		c.jvmOptions = strings.TrimSpace(value)
	}
}

// WithOutputLimit bounds the bytes retained per output stream.
func WithOutputLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.outputLimit = limit
		}
	}
}

// WithSettlePolicy overrides the post-exit artifact poll bounds.
func WithSettlePolicy(policy SettlePolicy) Option {
	return func(c *Client) {
		c.settle = policy
	}
}

// Client wraps Audiveris CLI interactions. It is immutable after New and safe
// for concurrent use by multiple goroutines.
type Client struct {
	executable  string
	preset      Preset
	ext         string
	jvmOptions  string
	outputLimit int
	settle      SettlePolicy
	exec        Executor
	logger      *slog.Logger
}

// New validates that executable exists and is runnable and returns a client
// bound to preset. Bare command names are resolved through PATH.
func New(executable string, preset Preset, opts ...Option) (*Client, error) {
	resolved, err := resolveExecutable(executable)
	if err != nil {
		return nil, err
	}
	client := &Client{
		executable:  resolved,
		preset:      clonePreset(preset),
		ext:         defaultExtension,
		outputLimit: defaultOutputLimit,
		settle:      DefaultSettlePolicy(),
		exec:        commandExecutor{},
		logger:      logging.NewComponentLogger(nil, "audiveris"),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.preset.Timeout <= 0 {
		client.preset.Timeout = defaultTimeout
	}
	return client, nil
}

func resolveExecutable(executable string) (string, error) {
	executable = strings.TrimSpace(executable)
	if executable == "" {
		return "", services.Wrap(services.ErrConfiguration, "audiveris", "configure", "engine executable not set", nil)
	}
	if !strings.ContainsRune(executable, os.PathSeparator) {
		path, err := exec.LookPath(executable)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "audiveris", "configure",
				fmt.Sprintf("engine %q not found on PATH", executable), err)
		}
		return path, nil
	}
	info, err := os.Stat(executable)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "audiveris", "configure",
			fmt.Sprintf("engine executable %s", executable), err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrConfiguration, "audiveris", "configure",
			fmt.Sprintf("engine executable %s is not a regular file", executable), nil)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", services.Wrap(services.ErrConfiguration, "audiveris", "configure",
			fmt.Sprintf("engine executable %s is not executable", executable), nil)
	}
	return executable, nil
}

func clonePreset(p Preset) Preset {
	out := p
	out.Options = make(map[string]string, len(p.Options))
	for k, v := range p.Options {
		out.Options[k] = v
	}
	return out
}

// Executable returns the resolved engine path.
func (c *Client) Executable() string {
	return c.executable
}

// Preset returns a copy of the bound preset.
func (c *Client) Preset() Preset {
	return clonePreset(c.preset)
}

// Convert runs the engine for job and classifies the result. A non-nil error
// means the job was rejected before launch (bad inputs, busy output
// directory); once the engine starts, every failure is reported through the
// returned outcome instead.
func (c *Client) Convert(ctx context.Context, job Job) (outcome.Outcome, error) {
	job = job.clone()
	if err := c.prepare(&job); err != nil {
		return outcome.Outcome{}, err
	}

	lock := flock.New(job.OutputDir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return outcome.Outcome{}, services.Wrap(services.ErrValidation, "audiveris", "lock output", job.OutputDir, err)
	}
	if !locked {
		return outcome.Outcome{}, services.Wrap(services.ErrValidation, "audiveris", "lock output", job.OutputDir, ErrOutputBusy)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	options := mergeOptions(c.preset, job.Options)
	opus := opusEnabled(options)
	expected := expectedArtifacts(job, c.ext, opus)
	bound := job.Timeout
	if bound <= 0 {
		bound = c.preset.Timeout
	}

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("conversion started",
		logging.String("preset", c.preset.Name),
		logging.Int("inputs", len(job.Inputs)),
		logging.String("output_dir", job.OutputDir),
		logging.Duration("timeout", bound),
		logging.Bool("opus", opus),
	)

	exe := c.exec.Run(ctx, Request{
		Binary:      c.executable,
		Args:        buildArgs(job, options),
		Env:         buildEnv(os.Environ(), c.jvmOptions),
		Timeout:     bound,
		OutputLimit: c.outputLimit,
	})

	result := outcome.Result{
		Launched:  exe.Started,
		LaunchErr: exe.StartErr,
		TimedOut:  exe.TimedOut,
		Canceled:  exe.Canceled,
		ExitCode:  exe.ExitCode,
		Signal:    exe.Signal,
		Stdout:    exe.Stdout,
		Stderr:    exe.Stderr,
		Elapsed:   exe.Elapsed,
		Bound:     bound,
		OutputDir: job.OutputDir,
		Expected:  expected,
	}
	if exe.Started && !exe.TimedOut && !exe.Canceled && exe.Signal == "" {
		wait := c.settle.maxWait(totalSize(job.Inputs))
		result.Found = awaitArtifacts(ctx, expected, wait, c.settle.Interval)
	}
	if len(result.Found) < len(expected) {
		result.Listing = listDir(job.OutputDir)
	}

	out := outcome.Classify(result)
	c.report(logger, out)
	return out, nil
}

func (c *Client) prepare(job *Job) error {
	if len(job.Inputs) == 0 {
		return services.Wrap(services.ErrValidation, "audiveris", "prepare", "job has no inputs", nil)
	}
	if strings.TrimSpace(job.OutputDir) == "" {
		return services.Wrap(services.ErrValidation, "audiveris", "prepare", "job has no output directory", nil)
	}
	outputDir, err := filepath.Abs(filepath.Clean(job.OutputDir))
	if err != nil {
		return services.Wrap(services.ErrValidation, "audiveris", "prepare", "resolve output directory", err)
	}
	job.OutputDir = outputDir
	for i, input := range job.Inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return services.Wrap(services.ErrValidation, "audiveris", "prepare", "resolve input", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return services.Wrap(services.ErrValidation, "audiveris", "prepare", fmt.Sprintf("input %s", input), err)
		}
		if !info.Mode().IsRegular() {
			return services.Wrap(services.ErrValidation, "audiveris", "prepare", fmt.Sprintf("input %s is not a regular file", input), nil)
		}
		job.Inputs[i] = abs
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "audiveris", "prepare", "create output directory", err)
	}
	return nil
}

func (c *Client) report(logger *slog.Logger, out outcome.Outcome) {
	attrs := []logging.Attr{
		logging.String("outcome", string(out.Kind)),
		logging.Int("exit_code", out.ExitCode),
		logging.Duration("elapsed", out.Elapsed),
	}
	switch out.Kind {
	case outcome.KindSuccess:
		attrs = append(attrs, logging.String("artifact", out.Path()), logging.Int("artifacts", len(out.Artifacts)))
		if out.Anomalous() {
			logging.WarnWithContext(logger, "engine exited non-zero but produced artifacts", "conversion_anomaly",
				append(attrs,
					logging.String(logging.FieldErrorHint, "inspect engine stderr for partial recognition failures"),
					logging.String(logging.FieldImpact, "score may be incomplete"),
					logging.String("stderr", out.Stderr.Head),
				)...)
			return
		}
		logger.Info("conversion completed", logging.Args(attrs...)...)
	case outcome.KindTimeout:
		logging.ErrorWithContext(logger, "conversion timed out", "conversion_timeout",
			append(attrs,
				logging.Duration("bound", out.Bound),
				logging.String(logging.FieldErrorHint, "retry with a larger timeout or the fast preset"),
			)...)
	case outcome.KindCrash:
		logging.ErrorWithContext(logger, "conversion crashed", "conversion_crash",
			append(attrs,
				logging.String("cause", out.Cause),
				logging.String("signal", out.Signal),
				logging.String("stderr", out.Stderr.Head),
				logging.String(logging.FieldErrorHint, "check the engine installation and JVM memory limits"),
			)...)
	case outcome.KindArtifactMissing:
		logging.ErrorWithContext(logger, "conversion produced no artifact", "conversion_artifact_missing",
			append(attrs,
				logging.String("cause", out.Cause),
				logging.String("listing", strings.Join(out.Listing, ", ")),
				logging.String("stderr", out.Stderr.Head),
				logging.String(logging.FieldErrorHint, "the engine may not have recognised any staves; inspect the cleaned pages"),
			)...)
	}
}
