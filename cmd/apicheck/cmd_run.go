package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/healthtestai/apicheck/internal/apiclient"
	"github.com/healthtestai/apicheck/internal/baseline"
	"github.com/healthtestai/apicheck/internal/checks"
	"github.com/healthtestai/apicheck/internal/hooks"
	"github.com/healthtestai/apicheck/internal/poll"
	"github.com/healthtestai/apicheck/internal/projectconfig"
	"github.com/healthtestai/apicheck/internal/reporting"
	"github.com/healthtestai/apicheck/internal/transcript"
	"github.com/healthtestai/apicheck/internal/utils"
)

// Output formats accepted by --format.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

type runOptions struct {
	configPath    string
	timeout       time.Duration
	message       string
	settleDelay   time.Duration
	pollTimeout   time.Duration
	pollInterval  time.Duration
	extended      bool
	junit         string
	output        string
	format        string
	transcriptDir string
	baseline      string
	noColor       bool
	interpret     bool
}

func newRunCommand() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [base-url]",
		Short: "Run the conformance suite against a HealthTestAI backend",
		Long: `Run the conformance suite against a running HealthTestAI backend.

The base URL comes from the argument, APICHECK_BASE_URL, .apicheck.yaml or
the default http://localhost:5000, in that order. Flags override the
environment, which overrides the config file.

Exit status is 0 when every executed check passed, 1 when a check failed
or a gate check stopped the suite, and 2 on configuration errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommandE(cmd, args, o)
		},
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to a config file (default: .apicheck.yaml found from the working directory)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", projectconfig.DefaultTimeout, "Timeout for each HTTP request")
	cmd.Flags().StringVar(&o.message, "message", projectconfig.DefaultChatMessage, "Message sent to the chat session")
	cmd.Flags().DurationVar(&o.settleDelay, "settle-delay", projectconfig.DefaultSettleDelay, "Pause between creating a chat session and sending to it")
	cmd.Flags().DurationVar(&o.pollTimeout, "poll-timeout", projectconfig.DefaultPollTimeout, "How long to wait for the assistant reply")
	cmd.Flags().DurationVar(&o.pollInterval, "poll-interval", projectconfig.DefaultPollInterval, "First delay between chat history reads")
	cmd.Flags().BoolVar(&o.extended, "extended", false, "Also check the session listing, not-found and delete routes")
	cmd.Flags().StringVar(&o.junit, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Write the JSON report to this path")
	cmd.Flags().StringVar(&o.format, "format", formatText, "Output format: text, json, markdown")
	cmd.Flags().StringVar(&o.transcriptDir, "transcript-dir", "", "Directory to save the chat transcript JSON")
	cmd.Flags().StringVar(&o.baseline, "baseline", "", "Compare against a JSON report saved by an earlier run")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&o.interpret, "interpret", false, "Print a plain-language interpretation of the results")

	return cmd
}

// resolveConfig layers defaults, the config file, the environment, flags and
// the positional base URL, in increasing precedence.
func resolveConfig(cmd *cobra.Command, args []string, o *runOptions) (*projectconfig.ProjectConfig, error) {
	var (
		cfg *projectconfig.ProjectConfig
		err error
	)
	if o.configPath != "" {
		cfg, err = projectconfig.LoadFile(o.configPath)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		cfg, err = projectconfig.Load(wd)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("message") {
		cfg.Chat.Message = o.message
	}
	if flags.Changed("settle-delay") {
		cfg.Chat.SettleDelay = utils.Ptr(o.settleDelay)
	}
	if flags.Changed("poll-timeout") {
		cfg.Chat.PollTimeout = o.pollTimeout
	}
	if flags.Changed("poll-interval") {
		cfg.Chat.PollInterval = o.pollInterval
	}
	if flags.Changed("extended") {
		cfg.Extended = utils.Ptr(o.extended)
	}
	if flags.Changed("junit") {
		cfg.Output.JUnit = o.junit
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("transcript-dir") {
		cfg.Output.TranscriptDir = o.transcriptDir
	}
	if flags.Changed("baseline") {
		cfg.Output.Baseline = o.baseline
	}
	if flags.Changed("no-color") {
		cfg.Output.Color = utils.Ptr(!o.noColor)
	}
	if len(args) == 1 {
		cfg.BaseURL = args[0]
	}

	switch cfg.Output.Format {
	case formatText, formatJSON, formatMarkdown:
	default:
		return nil, fmt.Errorf("unknown output format: %s (supported: text, json, markdown)", cfg.Output.Format)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.Chat.SettleDelay != nil && *cfg.Chat.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must not be negative, got %v", *cfg.Chat.SettleDelay)
	}
	if cfg.Chat.PollTimeout < 0 {
		return nil, fmt.Errorf("poll timeout must not be negative, got %v", cfg.Chat.PollTimeout)
	}
	return cfg, nil
}

func newRunner(client *apiclient.Client, cfg *projectconfig.ProjectConfig) *checks.Runner {
	suite := checks.DefaultSuite()
	if cfg.Extended != nil && *cfg.Extended {
		suite = checks.ExtendedSuite()
	}
	settle := projectconfig.DefaultSettleDelay
	if cfg.Chat.SettleDelay != nil {
		settle = *cfg.Chat.SettleDelay
	}
	return checks.NewRunner(client,
		checks.WithSuite(suite),
		checks.WithMessage(cfg.Chat.Message),
		checks.WithSettleDelay(settle),
		checks.WithPoll(poll.Options{
			Initial:  cfg.Chat.PollInterval,
			Max:      poll.DefaultMax,
			Deadline: cfg.Chat.PollTimeout,
		}),
	)
}

func runCommandE(cmd *cobra.Command, args []string, o *runOptions) (err error) {
	cfg, err := resolveConfig(cmd, args, o)
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		slog.Debug("loaded config", "path", cfg.Path)
	}

	var base *reporting.Report
	if cfg.Output.Baseline != "" {
		if base, err = baseline.Load(cfg.Output.Baseline); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	client, err := apiclient.New(cfg.BaseURL,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithRequestID(runID),
		apiclient.WithUserAgent("apicheck/"+version),
	)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	runner := newRunner(client, cfg)

	var aborted string
	runner.OnProgress(func(event checks.ProgressEvent) {
		if event.EventType == checks.EventGateAbort {
			aborted = event.Message
		}
	})

	out := cmd.OutOrStdout()
	useColor := (cfg.Output.Color == nil || *cfg.Output.Color) && isTerminal(out)
	var text *textReporter
	if cfg.Output.Format == formatText {
		text = newTextReporter(out, cmd.ErrOrStderr(), useColor)
		runner.OnProgress(text.listen)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	hookRunner := &hooks.Runner{Output: cmd.ErrOrStderr()}
	if err := hookRunner.Execute(ctx, hooks.BeforeRun, cfg.Hooks.BeforeRun); err != nil {
		return err
	}
	defer func() {
		// Teardown still runs after an interrupt.
		afterErr := hookRunner.Execute(context.WithoutCancel(ctx), hooks.AfterRun, cfg.Hooks.AfterRun)
		if err == nil {
			err = afterErr
		}
	}()

	started := time.Now()
	if text != nil {
		text.header(client.BaseURL(), started)
	}
	ok, results := runner.Run(ctx)
	rep := reporting.NewReport(runID, client.BaseURL(), started, time.Since(started), ok, aborted, results)

	if err := writeReport(out, cfg.Output.Format, text, rep); err != nil {
		return err
	}
	if base != nil {
		writeComparison(out, cfg.Output.Format, baseline.Compare(base, rep))
	}
	if o.interpret && cfg.Output.Format != formatJSON {
		fmt.Fprint(out, "\n"+reporting.FormatSummaryReport(rep)) //nolint:errcheck
	}

	if err := saveArtifacts(out, cfg, o, runner, rep); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", context.Cause(ctx))
	}
	if !ok {
		if rep.Failed() == 0 && aborted != "" {
			return &TestFailureError{Message: "suite stopped: " + aborted}
		}
		return &TestFailureError{
			Message: fmt.Sprintf("conformance run completed with %d of %d check(s) failed", rep.Failed(), rep.Total),
		}
	}
	return nil
}

func writeReport(out io.Writer, format string, text *textReporter, rep *reporting.Report) error {
	switch format {
	case formatJSON:
		return reporting.WriteJSON(out, rep)
	case formatMarkdown:
		_, err := fmt.Fprint(out, FormatMarkdown(rep))
		return err
	default:
		text.summary(rep)
		return nil
	}
}

// saveArtifacts writes the optional JSON report, JUnit XML and chat
// transcript. Confirmation lines go to out only in text mode so that json
// and markdown output stay parseable.
func saveArtifacts(out io.Writer, cfg *projectconfig.ProjectConfig, o *runOptions, runner *checks.Runner, rep *reporting.Report) error {
	if cfg.Output.Format != formatText {
		out = io.Discard
	}

	if o.output != "" {
		if err := reporting.SaveJSON(rep, o.output); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(out, "Results saved to: %s\n", o.output) //nolint:errcheck
	}

	if cfg.Output.JUnit != "" {
		if err := reporting.WriteJUnitXML(rep, runner.Suite(), cfg.Output.JUnit); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
		fmt.Fprintf(out, "JUnit report saved to: %s\n", cfg.Output.JUnit) //nolint:errcheck
	}

	if cfg.Output.TranscriptDir != "" {
		s := runner.Session()
		if s == nil || s.SessionID() == "" || len(s.Messages()) == 0 {
			slog.Debug("no chat transcript to save")
			return nil
		}
		t := transcript.New(rep.RunID, rep.BaseURL, s.SessionID(), s.RequirementID(), s.Messages(), time.Now())
		path, err := transcript.Write(cfg.Output.TranscriptDir, t)
		if err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
		fmt.Fprintf(out, "Transcript saved to: %s\n", path) //nolint:errcheck
	}
	return nil
}
