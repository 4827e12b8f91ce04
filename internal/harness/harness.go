package harness

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tickcheck/internal/actor"
	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/verify"
)

// Client is the part of *apiclient.Client the driver uses.
type Client interface {
	Call(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
	BaseURL() string
}

// Actors resolves roles to identities. *actor.Registry implements it.
type Actors interface {
	Resolve(ctx context.Context, role actor.Role) *actor.Actor
	ResolveWithFallback(ctx context.Context, role, fallback actor.Role) *actor.Actor
}

// Env carries everything a scenario run depends on.
type Env struct {
	Client Client
	Actors Actors
	Logger *zap.Logger

	// Poll is the default bound for steps with a wait clause.
	Poll verify.Poll

	// Sleep implements delay. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// RunID is exposed to scenarios as ${run_id}.
	RunID string

	// Vars override scenario defaults.
	Vars Vars

	Now func() time.Time
}

// maxJumpFactor bounds executed steps to this multiple of the step count,
// so a next/on_failure cycle cannot run forever.
const maxJumpFactor = 4

type outcome int

const (
	outcomeOK outcome = iota
	outcomeFailed
	outcomeAbort
	outcomeFatal
)

type runner struct {
	s      *Scenario
	env    Env
	res    *Result
	vars   Vars
	logger *zap.Logger
}

// Run executes a scenario: START, then each step in order (or as jumps
// direct), ending in DONE or ABORTED. Verification failures are recorded
// in the result's report; the returned error is reserved for an unusable
// environment.
func Run(ctx context.Context, s *Scenario, env Env) (*Result, error) {
	if env.Client == nil {
		return nil, errors.New("harness: client is required")
	}
	if env.Actors == nil {
		return nil, errors.New("harness: actor registry is required")
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Sleep == nil {
		env.Sleep = sleep
	}
	if env.Now == nil {
		env.Now = time.Now
	}

	r := &runner{
		s:      s,
		env:    env,
		res:    NewResult(s.Name),
		vars:   initialVars(s, env),
		logger: env.Logger.With(zap.String("scenario", s.Name)),
	}
	r.res.StartedAt = env.Now()
	r.logger.Info("scenario started", zap.Int("steps", len(s.Steps)))

	r.loop(ctx)

	r.res.Vars = r.vars
	r.res.FinishedAt = env.Now()
	passed, failed := r.res.Report.Counts()
	r.logger.Info("scenario finished",
		zap.String("state", string(r.res.State)),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Duration("duration", r.res.Duration()),
	)
	return r.res, nil
}

func initialVars(s *Scenario, env Env) Vars {
	vars := Vars{
		"run_id":   env.RunID,
		"base_url": env.Client.BaseURL(),
	}
	for k, v := range s.Vars {
		vars[k] = v
	}
	for k, v := range env.Vars {
		vars[k] = v
	}
	return vars
}

func (r *runner) loop(ctx context.Context) {
	limit := maxJumpFactor * len(r.s.Steps)
	executed := 0
	i := 0
	for i < len(r.s.Steps) {
		st := &r.s.Steps[i]
		if err := ctx.Err(); err != nil {
			r.res.Report.Fail("", st.Name, verify.KindAborted, err.Error())
			r.res.abort("cancelled before step " + st.Name)
			return
		}
		executed++
		if executed > limit {
			r.res.Report.Fail("", st.Name, verify.KindAborted,
				fmt.Sprintf("step limit %d exceeded; check next/on_failure for a cycle", limit))
			r.res.abort("step limit exceeded")
			return
		}

		switch r.runStep(ctx, st) {
		case outcomeFatal:
			r.res.Fatal = true
			return
		case outcomeAbort:
			return
		case outcomeFailed:
			i = r.jump(st.OnFailure, i)
		default:
			i = r.jump(st.Next, i)
		}
	}
	r.res.State = StateDone
}

func (r *runner) jump(target string, i int) int {
	if target == "" {
		return i + 1
	}
	return r.s.stepIndex(target)
}

func (r *runner) runStep(ctx context.Context, st *Step) outcome {
	log := r.logger.With(zap.String("step", st.Name))

	if st.Delay > 0 {
		log.Debug("fixed delay", zap.Duration("delay", st.Delay))
		if err := r.env.Sleep(ctx, st.Delay); err != nil {
			r.res.Report.Fail("", st.Name, verify.KindAborted, err.Error())
			r.res.abort("cancelled during delay of " + st.Name)
			return outcomeAbort
		}
	}

	who, o := r.actorFor(ctx, st)
	if o != outcomeOK {
		return o
	}

	req, missing := r.buildRequest(st, who)
	if len(missing) > 0 {
		r.res.Report.Fail(st.Method+" "+st.Path, st.Name, verify.KindCapture,
			"unresolved variable(s): "+strings.Join(missing, ", "))
		r.res.abort(fmt.Sprintf("step %s: dependent data unavailable", st.Name))
		return outcomeAbort
	}

	if st.Wait != nil {
		return r.await(ctx, st, req)
	}

	resp, err := r.call(ctx, req)
	endpoint := resp.Record.Method + " " + resp.Record.Endpoint
	log.Debug("step called", zap.String("endpoint", endpoint), zap.Int("status", resp.Status))

	if err != nil {
		if o, handled := r.failure(ctx, st, endpoint, who, err); handled {
			return o
		}
	} else if st.ExpectError {
		r.res.Report.Add(verify.Verdict{
			Check:    st.Name,
			Endpoint: endpoint,
			Status:   verify.StatusFail,
			Kind:     verify.KindMismatch,
			Expected: "HTTP error",
			Observed: fmt.Sprintf("HTTP %d", resp.Status),
			Detail:   "request unexpectedly accepted",
		})
		return outcomeOK
	} else if len(st.ExpectStatus) > 0 && !containsStatus(st.ExpectStatus, resp.Status) {
		r.res.Report.Add(verify.Verdict{
			Check:    st.Name,
			Endpoint: endpoint,
			Status:   verify.StatusFail,
			Kind:     verify.KindMismatch,
			Expected: statusList(st.ExpectStatus),
			Observed: fmt.Sprintf("HTTP %d", resp.Status),
		})
	} else {
		r.res.Report.Pass(endpoint, st.Name, fmt.Sprintf("HTTP %d", resp.Status))
	}

	if st.Schema != "" {
		r.res.Report.AssertSchema(endpoint, resp.Body, st.Schema, st.Name+" matches "+st.Schema+" schema")
	}
	for _, c := range st.Checks {
		r.res.Report.Add(evaluateCheck(endpoint, resp.Body, c, r.vars))
	}
	return r.capture(st, endpoint, resp.Body)
}

// failure classifies a failed call. handled=false means the step should
// carry on to its checks, as with an expected non-2xx status.
// A call cut short by cancellation aborts the scenario; it says nothing
// about the service.
func (r *runner) failure(ctx context.Context, st *Step, endpoint string, who *actor.Actor, err error) (outcome, bool) {
	if ctx.Err() != nil {
		r.res.Report.Fail(endpoint, st.Name, verify.KindAborted, err.Error())
		r.res.abort("cancelled during step " + st.Name)
		return outcomeAbort, true
	}
	if apiclient.IsUnreachable(err) {
		r.res.Report.Fail(endpoint, st.Name, verify.KindUnreachable, err.Error())
		r.res.abort("service unreachable")
		return outcomeFatal, true
	}

	herr, ok := apiclient.AsHTTPError(err)
	if !ok {
		r.res.Report.Fail(endpoint, st.Name, verify.KindAborted, err.Error())
		r.res.abort(fmt.Sprintf("step %s: %v", st.Name, err))
		return outcomeAbort, true
	}

	switch {
	case containsStatus(st.ExpectStatus, herr.Status):
		r.res.Report.Pass(endpoint, st.Name, fmt.Sprintf("HTTP %d as expected", herr.Status))
		return outcomeOK, false
	case st.ExpectError:
		r.res.Report.Pass(endpoint, st.Name, fmt.Sprintf("rejected with HTTP %d as expected", herr.Status))
		return outcomeOK, true
	case st.BestEffort:
		r.logger.Info("best-effort step failed",
			zap.String("step", st.Name),
			zap.Int("status", herr.Status),
			zap.String("on_failure", st.OnFailure),
		)
		return outcomeFailed, true
	}

	detail := herr.Error()
	if who != nil && !who.Authenticated {
		detail += fmt.Sprintf(" (actor %s unauthenticated: %v)", who.Role, who.Missing)
	}
	r.res.Report.Add(verify.Verdict{
		Check:    st.Name,
		Endpoint: endpoint,
		Status:   verify.StatusFail,
		Kind:     verify.KindHTTP,
		Expected: "2xx",
		Observed: fmt.Sprintf("HTTP %d", herr.Status),
		Detail:   detail,
	})
	r.res.abort(fmt.Sprintf("step %s: HTTP %d", st.Name, herr.Status))
	return outcomeAbort, true
}

// await re-issues a GET until every check holds or the poll times out.
// HTTP errors while polling count as "not yet".
func (r *runner) await(ctx context.Context, st *Step, req apiclient.Request) outcome {
	poll := r.env.Poll
	if st.Wait.Timeout > 0 {
		poll.Timeout = st.Wait.Timeout
	}
	if st.Wait.Interval > 0 {
		poll.Interval = st.Wait.Interval
	}

	endpoint := req.Method + " " + req.Endpoint
	var (
		last     []verify.Verdict
		lastBody any = verify.Absent
		lastHTTP error
		fatal    error
	)
	probe := func(ctx context.Context) (bool, error) {
		resp, err := r.call(ctx, req)
		endpoint = resp.Record.Method + " " + resp.Record.Endpoint
		if err != nil {
			if apiclient.IsUnreachable(err) {
				if ctx.Err() != nil {
					return false, nil
				}
				fatal = err
				return false, err
			}
			lastHTTP = err
			return false, nil
		}
		lastHTTP = nil
		lastBody = resp.Body
		last = last[:0]
		ok := true
		for _, c := range st.Checks {
			v := evaluateCheck(endpoint, resp.Body, c, r.vars)
			ok = ok && v.Passed()
			last = append(last, v)
		}
		return ok, nil
	}

	err := verify.Eventually(ctx, poll, probe)
	switch {
	case err == nil:
		r.res.Report.Pass(endpoint, st.Name, "condition met")
		for _, v := range last {
			r.res.Report.Add(v)
		}
		return r.capture(st, endpoint, lastBody)
	case fatal != nil:
		r.res.Report.Fail(endpoint, st.Name, verify.KindUnreachable, fatal.Error())
		r.res.abort("service unreachable")
		return outcomeFatal
	case errors.Is(err, verify.ErrPollTimeout):
		detail := err.Error()
		if lastHTTP != nil {
			detail += "; last error: " + lastHTTP.Error()
		}
		if len(last) == 0 {
			r.res.Report.Timeout(endpoint, st.Name, "2xx response", "no successful response", detail)
			return outcomeOK
		}
		for _, v := range last {
			if v.Passed() {
				r.res.Report.Add(v)
				continue
			}
			r.res.Report.Timeout(v.Endpoint, v.Check, v.Expected, v.Observed, detail)
		}
		r.logger.Warn("poll timed out", zap.String("step", st.Name), zap.Error(err))
		return outcomeOK
	default:
		r.res.Report.Fail(endpoint, st.Name, verify.KindAborted, err.Error())
		r.res.abort(fmt.Sprintf("step %s: %v", st.Name, err))
		return outcomeAbort
	}
}

func (r *runner) call(ctx context.Context, req apiclient.Request) (*apiclient.Response, error) {
	resp, err := r.env.Client.Call(ctx, req)
	r.res.Trace = append(r.res.Trace, resp.Record)
	return resp, err
}

func (r *runner) actorFor(ctx context.Context, st *Step) (*actor.Actor, outcome) {
	if st.Actor == "" {
		return nil, outcomeOK
	}
	role, _ := actor.ParseRole(st.Actor)

	var a *actor.Actor
	if st.FallbackActor != "" {
		fallback, _ := actor.ParseRole(st.FallbackActor)
		a = r.env.Actors.ResolveWithFallback(ctx, role, fallback)
	} else {
		a = r.env.Actors.Resolve(ctx, role)
	}

	if !a.Authenticated {
		if err := ctx.Err(); err != nil {
			r.res.Report.Fail(st.Method+" "+st.Path, st.Name, verify.KindAborted, err.Error())
			r.res.abort("cancelled while resolving " + string(role))
			return a, outcomeAbort
		}
		if apiclient.IsUnreachable(a.Missing) {
			r.res.Report.Fail(st.Method+" "+st.Path, st.Name, verify.KindUnreachable, a.Missing.Error())
			r.res.abort("service unreachable")
			return a, outcomeFatal
		}
		r.logger.Warn("step runs unauthenticated",
			zap.String("step", st.Name),
			zap.String("role", string(role)),
			zap.NamedError("reason", a.Missing),
		)
	}
	return a, outcomeOK
}

func (r *runner) buildRequest(st *Step, who *actor.Actor) (apiclient.Request, []string) {
	exp := newExpander(r.vars)
	req := apiclient.Request{
		Method:   st.Method,
		Endpoint: exp.String(st.Path),
	}
	if len(st.Query) > 0 {
		req.Query = url.Values{}
		for k, v := range st.Query {
			req.Query.Set(k, exp.String(v))
		}
	}
	if st.Body != nil {
		req.Payload = exp.Value(st.Body)
	}
	if st.Form != nil {
		req.Form = url.Values{}
		for k, v := range st.Form {
			req.Form.Set(k, exp.String(v))
		}
	}
	if who != nil {
		req.Credential = who.Credential
		req.Actor = string(who.Role)
	}
	return req, exp.Missing()
}

// capture stores response fields as variables. A missing field aborts the
// scenario: later steps depend on it.
func (r *runner) capture(st *Step, endpoint string, body any) outcome {
	names := make([]string, 0, len(st.Capture))
	for name := range st.Capture {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := st.Capture[name]
		v, ok, err := Lookup(body, path)
		if err == nil && ok && v != nil {
			r.vars[name] = v
			r.logger.Debug("captured", zap.String("step", st.Name), zap.String("var", name), zap.Any("value", v))
			continue
		}
		detail := fmt.Sprintf("field %q missing from response", path)
		if err != nil {
			detail = err.Error()
		}
		r.res.Report.Add(verify.Verdict{
			Check:    fmt.Sprintf("%s: capture %s", st.Name, name),
			Endpoint: endpoint,
			Status:   verify.StatusFail,
			Kind:     verify.KindCapture,
			Expected: path,
			Observed: verify.Normalize(verify.Absent),
			Detail:   detail,
		})
		r.res.abort(fmt.Sprintf("step %s: could not capture %s", st.Name, name))
		return outcomeAbort
	}
	return outcomeOK
}

func containsStatus(list []int, status int) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func statusList(list []int) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = fmt.Sprintf("HTTP %d", s)
	}
	return strings.Join(parts, " or ")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
