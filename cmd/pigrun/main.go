// pigrun runs a Pig Latin script through the pig command line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amread/airflow/internal/audit"
	"github.com/amread/airflow/internal/config"
	"github.com/amread/airflow/internal/connection"
	"github.com/amread/airflow/internal/notify"
	"github.com/amread/airflow/internal/pig"
	"github.com/amread/airflow/internal/status"
	"github.com/amread/airflow/internal/version"
)

func main() {
	configPath := flag.String("config", "pigrun.yaml", "path to configuration file")
	connID := flag.String("conn", "", "connection id (default from config)")
	quiet := flag.Bool("q", false, "do not log the command line and output as it arrives")
	statsEvery := flag.Duration("stats", 0, "log resource usage of the pig job at this interval (0 disables)")
	history := flag.Int("history", 0, "print the last N recorded runs and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pigrun [flags] [script-file|-]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pigrun: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	if *history > 0 {
		if err := showHistory(cfg, *configPath, *history, os.Stdout); err != nil {
			slog.Error("fatal error", "error", err)
			os.Exit(1)
		}
		return
	}

	opts := options{
		configPath: *configPath,
		connID:     *connID,
		scriptArg:  flag.Arg(0),
		verbose:    !*quiet,
		statsEvery: *statsEvery,
	}

	if err := run(cfg, opts); err != nil {
		var execErr *pig.ExecutionError
		if errors.As(err, &execErr) {
			if !opts.verbose {
				fmt.Fprint(os.Stderr, execErr.Output)
			}
			slog.Error("pig job failed", "exit_code", execErr.ExitCode)
			os.Exit(1)
		}
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	connID     string
	scriptArg  string
	verbose    bool
	statsEvery time.Duration
}

func run(cfg *config.Config, opts options) error {
	script, scriptName, err := readScript(opts.scriptArg)
	if err != nil {
		return err
	}

	connID := opts.connID
	if connID == "" {
		connID = cfg.DefaultConnID
	}

	conns, closeConns, err := openConnections(cfg, opts.configPath)
	if err != nil {
		return err
	}
	defer closeConns()

	auditLogger, err := openAudit(cfg, opts.configPath)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	collector := status.NewGopsutilCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := pig.New(ctx, conns, connID, pig.Config{
		Binary:    cfg.Pig.Binary,
		ExtraArgs: cfg.Pig.ExtraArgs,
		TempDir:   cfg.Pig.TempDir,
		Audit:     auditLogger,
		Collector: collector,
	})
	if err != nil {
		return err
	}

	slog.Debug("connection resolved", "conn_id", connID, "pig_properties", runner.Properties())

	// Kill the job on SIGINT/SIGTERM; Run then returns like any failed job.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go forwardSignals(ctx, sigCh, runner.Kill)

	if opts.statsEvery > 0 {
		go monitor(ctx, runner, collector, opts.statsEvery)
	}

	start := time.Now()
	output, runErr := runner.Run(script, opts.verbose)

	summary := notify.Summary{
		ConnID:   connID,
		Script:   scriptName,
		Duration: time.Since(start),
		Output:   output,
	}
	var execErr *pig.ExecutionError
	if errors.As(runErr, &execErr) {
		summary.ExitCode = execErr.ExitCode
		summary.Output = execErr.Output
	}
	if runErr == nil || execErr != nil {
		if err := notifier.Notify(ctx, summary); err != nil {
			slog.Warn("failed to send notification", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	fmt.Print(output)
	return nil
}

// readScript reads the script from arg, or stdin when arg is empty or "-".
func readScript(arg string) (script, name string, err error) {
	if arg == "" || arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read script from stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	return string(data), filepath.Base(arg), nil
}

// openConnections builds the lookup chain: environment, then YAML file,
// then SQLite database when configured.
func openConnections(cfg *config.Config, configPath string) (connection.Getter, func(), error) {
	chain := connection.Chain{connection.EnvStore{}}
	closer := func() {}

	yamlStore, err := connection.LoadYAML(cfg.ExpandPath(configPath, cfg.Connections.File))
	if err != nil {
		return nil, nil, err
	}
	chain = append(chain, yamlStore)

	if cfg.Connections.Database != "" {
		dbStore, err := connection.OpenSQLite(cfg.ExpandPath(configPath, cfg.Connections.Database))
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, dbStore)
		closer = func() { dbStore.Close() }
	}

	slog.Debug("connection stores ready", "yaml_connections", yamlStore.Len(), "database", cfg.Connections.Database)

	return chain, closer, nil
}

func openAudit(cfg *config.Config, configPath string) (audit.Logger, error) {
	if cfg.Audit.Database == "" {
		return audit.NopLogger{}, nil
	}
	return audit.NewSQLiteLogger(cfg.ExpandPath(configPath, cfg.Audit.Database))
}

// forwardSignals calls kill for every signal received until ctx is done.
// A later signal still reaches a job that survived an earlier one.
func forwardSignals(ctx context.Context, sigCh <-chan os.Signal, kill func()) {
	for {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, stopping pig job", "signal", sig)
			kill()
		case <-ctx.Done():
			return
		}
	}
}

// showHistory prints the n most recent runs from the audit database.
func showHistory(cfg *config.Config, configPath string, n int, w io.Writer) error {
	if cfg.Audit.Database == "" {
		return errors.New("audit.database is not configured")
	}

	l, err := audit.NewSQLiteLogger(cfg.ExpandPath(configPath, cfg.Audit.Database))
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.Recent(context.Background(), n)
	if err != nil {
		return err
	}
	return printHistory(w, entries)
}

// printHistory writes one tab-separated line per entry, newest first.
func printHistory(w io.Writer, entries []audit.Entry) error {
	for _, e := range entries {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\texit=%d\t%dms\t%dB\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.RunID, e.ConnID,
			e.ExitCode, e.DurationMs, e.OutputBytes, e.Command)
		if err != nil {
			return err
		}
	}
	return nil
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" {
		return notify.NopNotifier{}, nil
	}
	return notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatIDs)
}

// monitor logs job and host usage until ctx is done.
func monitor(ctx context.Context, runner *pig.Runner, collector status.Collector, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := runner.Stats(ctx)
		if errors.Is(err, pig.ErrNotRunning) {
			continue
		}
		if err != nil {
			slog.Debug("failed to collect job stats", "error", err)
			continue
		}

		host, err := collector.System(ctx)
		if err != nil {
			slog.Debug("failed to collect host stats", "error", err)
			continue
		}

		slog.Info("pig job usage",
			"pid", job.PID,
			"cpu_percent", job.CPUPercent,
			"rss_bytes", job.RSSBytes,
			"threads", job.NumThreads,
			"host_cpu_percent", host.CPUPercent,
			"host_mem_percent", host.MemoryPercent,
		)
	}
}
