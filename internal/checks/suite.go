package checks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/healthtestai/apicheck/internal/apiclient"
	"github.com/healthtestai/apicheck/internal/poll"
	"github.com/healthtestai/apicheck/internal/shape"
	"github.com/healthtestai/apicheck/internal/transcript"
)

// Check names, in suite order.
const (
	NameHealth                 = "Health Check"
	NameRequirements           = "Get Requirements"
	NameTestCases              = "Get Test Cases"
	NameRequirementByID        = "Get Requirement by ID"
	NameTestCasesByRequirement = "Get Test Cases by Requirement"
	NameCreateChatSession      = "Create Chat Session"
	NameSendChatMessage        = "Send Chat Message"
	NameChatMessages           = "Get Chat Messages"

	NameSessionsByRequirement = "List Chat Sessions for Requirement"
	NameUnknownRequirement    = "Get Unknown Requirement"
	NameDeleteChatSession     = "Delete Chat Session"
)

// Display limits for sampled text.
const (
	sampleTitleLen      = 50
	requirementTitleLen = 30
	healthBodyLen       = 80
	replyPreviewLen     = 60
)

// DefaultSuite returns the eight core checks in execution order.
func DefaultSuite() []Check {
	return []Check{
		{
			Name: NameHealth, Method: http.MethodGet, Path: "/api/health", Expect: http.StatusOK,
			Gate:         gatePassed,
			AbortMessage: "Health check failed - stopping tests",
			Run:          runHealth,
		},
		{
			Name: NameRequirements, Method: http.MethodGet, Path: "/api/requirements", Expect: http.StatusOK,
			Gate:         gateRequirements,
			AbortMessage: "Requirements endpoint failed - stopping tests",
			Run:          runListing(shape.RequirementKeys, KeyRequirementID),
		},
		{
			Name: NameTestCases, Method: http.MethodGet, Path: "/api/test-cases", Expect: http.StatusOK,
			Run: runListing(shape.TestCaseKeys, ""),
		},
		{
			Name: NameRequirementByID, Method: http.MethodGet, Path: "/api/requirements/{requirementId}", Expect: http.StatusOK,
			Requires: []string{KeyRequirementID},
			Run:      runRequirementByID,
		},
		{
			Name: NameTestCasesByRequirement, Method: http.MethodGet, Path: "/api/test-cases/requirement/{requirementId}", Expect: http.StatusOK,
			Requires: []string{KeyRequirementID},
			Run:      runCount("Req ID", KeyRequirementID),
		},
		{
			Name: NameCreateChatSession, Method: http.MethodPost, Path: "/api/chat/sessions", Expect: http.StatusOK,
			Requires: []string{KeyRequirementID},
			Run:      runCreateChatSession,
		},
		{
			Name: NameSendChatMessage, Method: http.MethodPost, Path: "/api/chat/sessions/{sessionId}/messages", Expect: http.StatusOK,
			Requires: []string{KeySessionID},
			Settle:   true,
			Run:      runSendChatMessage,
		},
		{
			Name: NameChatMessages, Method: http.MethodGet, Path: "/api/chat/sessions/{sessionId}/messages", Expect: http.StatusOK,
			Requires: []string{KeySessionID},
			Run:      runChatMessages,
		},
	}
}

// ExtendedSuite returns the default suite followed by checks for the
// remaining chat routes and the not-found contract.
func ExtendedSuite() []Check {
	return append(DefaultSuite(),
		Check{
			Name: NameSessionsByRequirement, Method: http.MethodGet, Path: "/api/chat/requirements/{requirementId}/sessions", Expect: http.StatusOK,
			Requires: []string{KeyRequirementID},
			Run:      runCount("Req ID", KeyRequirementID),
		},
		Check{
			Name: NameUnknownRequirement, Method: http.MethodGet, Path: "/api/requirements/{unknownRequirementId}", Expect: http.StatusNotFound,
			Requires: []string{KeyUnknownRequirementID},
			Run:      runStatusOnly("ID", KeyUnknownRequirementID),
		},
		Check{
			Name: NameDeleteChatSession, Method: http.MethodDelete, Path: "/api/chat/sessions/{sessionId}", Expect: http.StatusOK,
			Requires: []string{KeySessionID},
			Run:      runDeleteChatSession,
		},
	)
}

func gatePassed(res *CheckResult, _ *Session) bool { return res.Passed }

// gateRequirements also fails on an empty listing: nothing after it can run
// without a sampled requirement.
func gateRequirements(res *CheckResult, s *Session) bool {
	_, ok := s.Get(KeyRequirementID)
	return res.Passed && ok
}

// detail accumulates the comma-separated diagnostic of one check.
type detail struct {
	parts []string
}

func (d *detail) add(format string, args ...any) {
	d.parts = append(d.parts, fmt.Sprintf(format, args...))
}

func (d *detail) String() string { return strings.Join(d.parts, ", ") }

// begin sends c's request and builds the status part of the result. ok is
// true when the status matched c.Expect.
func begin(ctx context.Context, env *Env, c Check, body any) (*apiclient.Response, *CheckResult, *detail, error) {
	resp, _, err := env.Send(ctx, c, body)
	if err != nil {
		return nil, nil, nil, err
	}
	res := &CheckResult{StatusCode: resp.StatusCode, Passed: resp.StatusCode == c.Expect}
	d := &detail{}
	d.add("Status: %d", resp.StatusCode)
	return resp, res, d, nil
}

func finish(res *CheckResult, d *detail) *CheckResult {
	res.Summary = d.String()
	return res
}

func countText(list []any, err error) string {
	if errors.Is(err, apiclient.ErrNotList) {
		return "Not a list"
	}
	return fmt.Sprintf("%d", len(list))
}

func runHealth(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	resp, res, d, err := begin(ctx, env, c, nil)
	if err != nil {
		return nil, err
	}
	if res.Passed {
		v, err := resp.JSON()
		if err != nil {
			return res, err
		}
		compact, _ := json.Marshal(v)
		d.add("Response: %s", shape.Truncate(string(compact), healthBodyLen))
	}
	return finish(res, d), nil
}

// runListing checks a collection endpoint: on success it reports the count
// and, when the list is non-empty, asserts keys on the first element. When
// produce is set, the first element's id is stored under that key.
func runListing(keys []string, produce string) RunFunc {
	return func(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
		resp, res, d, err := begin(ctx, env, c, nil)
		if err != nil {
			return nil, err
		}
		if !res.Passed {
			return finish(res, d), nil
		}

		list, err := resp.List()
		if err != nil && !errors.Is(err, apiclient.ErrNotList) {
			return res, err
		}
		d.add("Count: %s", countText(list, err))
		if len(list) == 0 {
			return finish(res, d), nil
		}

		first, _ := shape.FirstElement(list)
		if missing := shape.MissingKeys(first, keys...); len(missing) > 0 {
			res.Passed = false
			d.add("Missing fields: [%s]", strings.Join(missing, " "))
			res.Details = append(res.Details, "missing: "+strings.Join(missing, ", "))
			return finish(res, d), nil
		}

		var sample struct {
			Title string `mapstructure:"title"`
		}
		if err := shape.Decode(first, &sample); err == nil {
			d.add("Sample: %s...", shape.Cut(sample.Title, sampleTitleLen))
		}
		if produce != "" {
			if id, ok := shape.IDString(first["id"]); ok {
				env.Session.Set(produce, id)
			}
		}
		return finish(res, d), nil
	}
}

func runRequirementByID(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	resp, res, d, err := begin(ctx, env, c, nil)
	if err != nil {
		return nil, err
	}
	d.add("ID: %s", env.Session.RequirementID())
	if res.Passed {
		obj, err := resp.Object()
		if err != nil {
			return res, err
		}
		var req shape.Requirement
		title := "No title"
		if err := shape.Decode(obj, &req); err == nil && req.Title != "" {
			title = req.Title
		}
		d.add("Title: %s...", shape.Cut(title, requirementTitleLen))
	}
	return finish(res, d), nil
}

// runCount reports the size of a list response; label/key name the id used.
func runCount(label, key string) RunFunc {
	return func(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
		resp, res, d, err := begin(ctx, env, c, nil)
		if err != nil {
			return nil, err
		}
		v, _ := env.Session.Get(key)
		d.add("%s: %s", label, v)
		if res.Passed {
			list, err := resp.List()
			if err != nil && !errors.Is(err, apiclient.ErrNotList) {
				return res, err
			}
			d.add("Count: %s", countText(list, err))
		}
		return finish(res, d), nil
	}
}

// runStatusOnly asserts nothing beyond the status code.
func runStatusOnly(label, key string) RunFunc {
	return func(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
		_, res, d, err := begin(ctx, env, c, nil)
		if err != nil {
			return nil, err
		}
		v, _ := env.Session.Get(key)
		d.add("%s: %s", label, v)
		if !res.Passed {
			d.add("Expected: %d", c.Expect)
		}
		return finish(res, d), nil
	}
}

func runCreateChatSession(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	reqID := env.Session.RequirementID()
	resp, res, d, err := begin(ctx, env, c, map[string]any{"requirementId": reqID})
	if err != nil {
		return nil, err
	}
	d.add("Req ID: %s", reqID)
	if !res.Passed {
		return finish(res, d), nil
	}

	obj, err := resp.Object()
	if err != nil {
		return res, err
	}
	if missing := shape.MissingKeys(obj, "sessionId"); len(missing) > 0 {
		res.Passed = false
		d.add("Missing fields: [sessionId]")
		return finish(res, d), nil
	}
	id, _ := shape.IDString(obj["sessionId"])
	env.Session.Set(KeySessionID, id)
	d.add("Session ID: %s", id)
	return finish(res, d), nil
}

func runSendChatMessage(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	resp, res, d, err := begin(ctx, env, c, map[string]any{"message": env.Options.Message})
	if err != nil {
		return nil, err
	}
	d.add("Session: %s", env.Session.SessionID())
	if res.Passed {
		v, err := resp.JSON()
		if err != nil {
			return res, err
		}
		d.add("Response type: %s", jsonKind(v))
	}
	return finish(res, d), nil
}

// runChatMessages reads the history until it holds an assistant reply or the
// poll deadline passes. Only the status code decides the result; whether the
// reply arrived is reported in the summary.
func runChatMessages(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	var (
		last    *apiclient.Response
		list    []any
		listErr error
		msgs    []shape.ChatMessage
	)
	env.Waiting("Waiting for assistant reply")
	attempts, err := poll.Until(ctx, env.Options.Poll, func(ctx context.Context) (bool, error) {
		resp, _, err := env.Send(ctx, c, nil)
		if err != nil {
			return false, err
		}
		last = resp
		if resp.StatusCode != c.Expect {
			return true, nil
		}
		list, listErr = resp.List()
		if listErr != nil {
			if errors.Is(listErr, apiclient.ErrNotList) {
				return true, nil
			}
			return false, listErr
		}
		msgs = shape.ChatMessages(list)
		_, found := shape.LastAssistant(msgs)
		return found, nil
	})
	if err != nil && !errors.Is(err, poll.ErrDeadline) {
		res := &CheckResult{}
		if last != nil {
			res.StatusCode = last.StatusCode
		}
		return res, err
	}

	res := &CheckResult{StatusCode: last.StatusCode, Passed: last.StatusCode == c.Expect}
	d := &detail{}
	d.add("Status: %d", last.StatusCode)
	d.add("Session: %s", env.Session.SessionID())
	if !res.Passed {
		return finish(res, d), nil
	}

	d.add("Messages count: %s", countText(list, listErr))
	env.Session.setMessages(msgs)
	if reply, ok := shape.LastAssistant(msgs); ok {
		d.add("Assistant reply: %s", transcript.Preview(reply.Content, replyPreviewLen))
	} else if listErr == nil {
		d.add("Assistant reply: none after %d reads", attempts)
	}
	return finish(res, d), nil
}

func runDeleteChatSession(ctx context.Context, env *Env, c Check) (*CheckResult, error) {
	resp, res, d, err := begin(ctx, env, c, nil)
	if err != nil {
		return nil, err
	}
	d.add("Session: %s", env.Session.SessionID())
	if !res.Passed {
		return finish(res, d), nil
	}
	obj, err := resp.Object()
	if err != nil {
		return res, err
	}
	if missing := shape.MissingKeys(obj, "success"); len(missing) > 0 {
		res.Passed = false
		d.add("Missing fields: [success]")
	}
	return finish(res, d), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return "null"
	}
}
