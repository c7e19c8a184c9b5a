package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/healthtestai/apicheck/internal/apiclient"
	"github.com/healthtestai/apicheck/internal/poll"
)

// DefaultMessage is the chat prompt sent by the Send Chat Message check.
const DefaultMessage = "Generate test cases for this requirement"

// DefaultSettleDelay is the pause between creating a chat session and using it.
const DefaultSettleDelay = time.Second

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart      EventType = "run_start"
	EventRunComplete   EventType = "run_complete"
	EventCheckStart    EventType = "check_start"
	EventCheckComplete EventType = "check_complete"
	EventCheckSkipped  EventType = "check_skipped"
	EventWaiting       EventType = "waiting"
	EventGateAbort     EventType = "gate_abort"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	CheckName   string
	CheckNum    int
	TotalChecks int
	Result      *CheckResult
	// Wait is the expected pause for EventWaiting; 0 for open-ended polling.
	Wait    time.Duration
	Message string
}

// Options tune the chat workflow timing and payloads.
type Options struct {
	Message     string
	SettleDelay time.Duration
	Poll        poll.Options
}

// Env is what a check sees while it runs.
type Env struct {
	Client  *apiclient.Client
	Session *Session
	Options Options

	notify func(ProgressEvent)
	check  string
}

// Send issues the request described by c, with its path expanded from the
// Session. body may be nil.
func (e *Env) Send(ctx context.Context, c Check, body any) (*apiclient.Response, string, error) {
	path, err := e.Session.Expand(c.Path)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.Client.Do(ctx, c.Method, path, body)
	return resp, path, err
}

// Waiting announces an open-ended wait (such as polling) to listeners.
func (e *Env) Waiting(message string) {
	if e.notify != nil {
		e.notify(ProgressEvent{EventType: EventWaiting, CheckName: e.check, Message: message})
	}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSuite replaces the default suite.
func WithSuite(suite []Check) RunnerOption {
	return func(r *Runner) {
		r.suite = suite
	}
}

// WithMessage sets the chat message sent to the session.
func WithMessage(msg string) RunnerOption {
	return func(r *Runner) {
		if msg != "" {
			r.opts.Message = msg
		}
	}
}

// WithSettleDelay sets the pause before checks marked Settle.
func WithSettleDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.opts.SettleDelay = d
	}
}

// WithPoll sets the polling bounds used while waiting for chat replies.
func WithPoll(o poll.Options) RunnerOption {
	return func(r *Runner) {
		r.opts.Poll = o
	}
}

// Runner executes a suite of checks, one at a time, in order.
type Runner struct {
	client    *apiclient.Client
	suite     []Check
	opts      Options
	listeners []ProgressListener
	session   *Session
}

// NewRunner creates a Runner for the default suite.
func NewRunner(client *apiclient.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client: client,
		suite:  DefaultSuite(),
		opts: Options{
			Message:     DefaultMessage,
			SettleDelay: DefaultSettleDelay,
			Poll: poll.Options{
				Initial:  poll.DefaultInitial,
				Max:      poll.DefaultMax,
				Deadline: poll.DefaultDeadline,
			},
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	for _, listener := range r.listeners {
		listener(event)
	}
}

// Suite returns the checks the runner executes.
func (r *Runner) Suite() []Check { return r.suite }

// Session returns the context of the most recent Run, or nil before the first.
func (r *Runner) Session() *Session { return r.session }

// Run executes the suite and reports whether every recorded check passed.
// A failing gate stops the suite and makes the run fail even when every
// recorded result passed. Check faults never escape Run; only ctx
// cancellation cuts the suite short without a gate.
func (r *Runner) Run(ctx context.Context) (bool, []*CheckResult) {
	s := NewSession()
	s.Set(KeyUnknownRequirementID, uuid.NewString())
	r.session = s

	total := len(r.suite)
	r.notifyProgress(ProgressEvent{EventType: EventRunStart, TotalChecks: total})

	var results []*CheckResult
	ok := true
	for i, c := range r.suite {
		num := i + 1
		if missing := s.Missing(c.Requires...); len(missing) > 0 {
			slog.Debug("skipping check", "check", c.Name, "missing", missing)
			r.notifyProgress(ProgressEvent{EventType: EventCheckSkipped, CheckName: c.Name, CheckNum: num, TotalChecks: total})
			continue
		}

		if c.Settle && r.opts.SettleDelay > 0 {
			r.notifyProgress(ProgressEvent{
				EventType: EventWaiting, CheckName: c.Name, CheckNum: num, TotalChecks: total,
				Wait: r.opts.SettleDelay, Message: "Waiting for session to settle",
			})
			if err := poll.Wait(ctx, r.opts.SettleDelay); err != nil {
				slog.Debug("run cancelled", "error", err)
				ok = false
				break
			}
		}

		r.notifyProgress(ProgressEvent{EventType: EventCheckStart, CheckName: c.Name, CheckNum: num, TotalChecks: total})
		env := &Env{Client: r.client, Session: s, Options: r.opts, notify: r.notifyProgress, check: c.Name}
		res := attempt(ctx, c, env)
		results = append(results, res)
		r.notifyProgress(ProgressEvent{EventType: EventCheckComplete, CheckName: c.Name, CheckNum: num, TotalChecks: total, Result: res})

		if c.IsGate() && !c.Gate(res, s) {
			slog.Debug("gate failed", "check", c.Name, "status", res.StatusCode)
			r.notifyProgress(ProgressEvent{EventType: EventGateAbort, CheckName: c.Name, CheckNum: num, TotalChecks: total, Result: res, Message: c.AbortMessage})
			ok = false
			break
		}
		if ctx.Err() != nil {
			ok = false
			break
		}
	}

	ok = ok && Summarize(results).AllPassed()
	r.notifyProgress(ProgressEvent{EventType: EventRunComplete, TotalChecks: total})
	return ok, results
}

// attempt runs c and turns any returned error or panic into a failed result.
func attempt(ctx context.Context, c Check, env *Env) (res *CheckResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = &CheckResult{Passed: false, Summary: fmt.Sprintf("Error: %v", p), Err: fmt.Errorf("panic: %v", p)}
		}
		res.Name = c.Name
		res.Duration = time.Since(start)
	}()

	if c.Run == nil {
		return &CheckResult{Summary: "Error: check has no body"}
	}
	r, err := c.Run(ctx, env, c)
	if err != nil {
		failed := &CheckResult{Summary: "Error: " + err.Error(), Err: err}
		if r != nil {
			failed.StatusCode = r.StatusCode
		}
		return failed
	}
	if r == nil {
		return &CheckResult{Summary: "Error: check returned no result"}
	}
	return r
}
