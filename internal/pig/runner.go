// Package pig runs Pig Latin scripts through the pig command line client.
//
// A Runner stages each script in its own temporary directory, runs
// `pig -f <script>` there and collects the combined stdout/stderr of the
// child. A job in flight can be stopped from another goroutine with Kill.
package pig

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/amread/airflow/internal/audit"
	"github.com/amread/airflow/internal/connection"
	"github.com/amread/airflow/internal/status"
)

const (
	// PropertiesKey is the connection extra holding default pig properties,
	// e.g. {"pig_properties": "-Dpig.tmpfilecompression=true"}.
	PropertiesKey = "pig_properties"

	tempDirPrefix = "airflow_pigop_"
)

var (
	// ErrNotRunning is returned by Stats when no job is in flight.
	ErrNotRunning = errors.New("no pig job running")

	// ErrBusy is returned by Run when the Runner already has a job in flight.
	ErrBusy = errors.New("pig job already running")
)

// ExecutionError reports a pig job that exited non-zero, killed jobs included.
// Output holds everything the job wrote before it ended.
type ExecutionError struct {
	ExitCode int
	Output   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pig exited with code %d: %s", e.ExitCode, e.Output)
}

// Config holds Runner dependencies. Zero values get defaults.
type Config struct {
	Binary    string
	ExtraArgs []string
	TempDir   string // parent for per-run directories; empty means os.TempDir()
	Logger    *slog.Logger
	Audit     audit.Logger
	Collector status.Collector
}

// Runner executes pig scripts for one connection. Run calls must not overlap;
// Kill and Stats are safe to call from any goroutine.
type Runner struct {
	cfg        Config
	connID     string
	properties string

	mu      sync.Mutex
	running bool
	proc    *os.Process
}

// New looks up connID and returns a Runner using its pig properties.
// An unknown connection yields an error wrapping connection.ErrNotFound.
func New(ctx context.Context, conns connection.Getter, connID string, cfg Config) (*Runner, error) {
	if connID == "" {
		return nil, fmt.Errorf("connection id is required")
	}

	conn, err := conns.Get(ctx, connID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var properties string
	if v, ok := conn.ExtraDejson()[PropertiesKey]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("connection %q: %s must be a string, got %T", connID, PropertiesKey, v)
		}
		properties = s
	}

	if cfg.Binary == "" {
		cfg.Binary = "pig"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	if cfg.Collector == nil {
		cfg.Collector = status.NewGopsutilCollector()
	}

	return &Runner{
		cfg:        cfg,
		connID:     connID,
		properties: properties,
	}, nil
}

// ConnID returns the connection the Runner was created for.
func (r *Runner) ConnID() string {
	return r.connID
}

// Properties returns the pig properties taken from the connection.
func (r *Runner) Properties() string {
	return r.properties
}

// Command assembles the pig invocation for the script at scriptPath.
func (r *Runner) Command(scriptPath string) []string {
	props := strings.Fields(r.properties)

	argv := make([]string, 0, 3+len(r.cfg.ExtraArgs)+len(props))
	argv = append(argv, r.cfg.Binary, "-f", scriptPath)
	argv = append(argv, r.cfg.ExtraArgs...)
	argv = append(argv, props...)
	return argv
}

// Run executes script and returns the combined output of pig. With verbose
// set, the command line and every output line are logged as they arrive.
// A non-zero exit returns an *ExecutionError carrying the output.
func (r *Runner) Run(script string, verbose bool) (string, error) {
	if !r.begin() {
		return "", ErrBusy
	}
	defer r.end()

	dir, err := os.MkdirTemp(r.cfg.TempDir, tempDirPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath, err := stageScript(dir, script)
	if err != nil {
		return "", err
	}
	defer os.Remove(scriptPath)

	argv := r.Command(scriptPath)
	if verbose {
		r.cfg.Logger.Info(strings.Join(argv, " "))
	}

	start := time.Now()
	output, exitCode, err := r.execute(argv, dir, verbose)
	if err != nil {
		return "", err
	}
	r.record(argv, start, exitCode, len(output))

	if exitCode != 0 {
		return "", &ExecutionError{ExitCode: exitCode, Output: output}
	}
	return output, nil
}

// stageScript writes script to a uniquely named file in dir and syncs it so
// the child sees the complete content.
func stageScript(dir, script string) (string, error) {
	f, err := os.CreateTemp(dir, "")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("sync script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close script file: %w", err)
	}

	return filepath.Clean(f.Name()), nil
}

// execute starts argv in dir and drains its output until the child closes it.
func (r *Runner) execute(argv []string, dir string, verbose bool) (string, int, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", 0, fmt.Errorf("create output pipe: %w", err)
	}
	defer pr.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	r.mu.Lock()
	err = cmd.Start()
	if err == nil {
		r.proc = cmd.Process
	}
	r.mu.Unlock()

	// The child holds its own copy of the write end; EOF means it is done writing.
	pw.Close()
	if err != nil {
		return "", 0, fmt.Errorf("start %s: %w", argv[0], err)
	}

	var out strings.Builder
	var readErr error
	reader := bufio.NewReader(pr)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			out.WriteString(line)
			if verbose {
				r.cfg.Logger.Info(strings.TrimRightFunc(line, unicode.IsSpace))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}
	if readErr != nil {
		// Unblock the child before waiting on it.
		r.Kill()
	}

	waitErr := cmd.Wait()

	r.mu.Lock()
	r.proc = nil
	r.mu.Unlock()

	if readErr != nil {
		return out.String(), 0, fmt.Errorf("read output: %w", readErr)
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out.String(), 0, fmt.Errorf("wait %s: %w", argv[0], waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return out.String(), exitCode, nil
}

// Kill forcefully terminates the job in flight. It does nothing when no job
// has been started or the job has already exited.
func (r *Runner) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc == nil || !processAlive(r.proc) {
		return
	}

	r.cfg.Logger.Info("killing pig job", "pid", r.proc.Pid)
	if err := killProcess(r.proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.cfg.Logger.Warn("failed to kill pig job", "pid", r.proc.Pid, "error", err)
	}
}

// Stats reports resource usage of the job in flight.
func (r *Runner) Stats(ctx context.Context) (*status.ProcessMetrics, error) {
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()

	if proc == nil {
		return nil, ErrNotRunning
	}
	return r.cfg.Collector.Process(ctx, int32(proc.Pid))
}

func (r *Runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// record writes the run to the audit log. Failures are logged only.
func (r *Runner) record(argv []string, start time.Time, exitCode, outputBytes int) {
	entry := audit.Entry{
		RunID:       uuid.NewString(),
		Timestamp:   start,
		ConnID:      r.connID,
		Command:     strings.Join(argv, " "),
		ExitCode:    exitCode,
		DurationMs:  time.Since(start).Milliseconds(),
		OutputBytes: outputBytes,
	}

	if err := r.cfg.Audit.Log(context.Background(), entry); err != nil {
		r.cfg.Logger.Warn("failed to record pig run", "run_id", entry.RunID, "error", err)
	}
}
