package executor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/agen8/internal/actions"
	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/telemetry"
)

// fakeAction — настраиваемое действие для тестов.
type fakeAction struct {
	name     string
	contract domain.ActionContract
	fn       func(ctx context.Context, req *actions.Request) (*actions.Result, error)

	mu    sync.Mutex
	calls []*actions.Request
}

func (a *fakeAction) Name() string { return a.name }

func (a *fakeAction) Contract() domain.ActionContract {
	c := a.contract
	c.Name = a.name
	return c
}

func (a *fakeAction) Execute(ctx context.Context, req *actions.Request) (*actions.Result, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.mu.Unlock()

	if a.fn == nil {
		return actions.Success(req.NodeID), nil
	}
	return a.fn(ctx, req)
}

func (a *fakeAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *fakeAction) call(nodeID string) *actions.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, req := range a.calls {
		if req.NodeID == nodeID {
			return req
		}
	}
	return nil
}

func newTestExecutor(t *testing.T, cfg Config, acts ...actions.Action) *Executor {
	t.Helper()

	reg := actions.NewRegistry()
	for _, a := range acts {
		reg.Register(a)
	}
	cfg.Registry = reg
	if cfg.Logger == nil {
		cfg.Logger = telemetry.DiscardLogger()
	}
	return New(cfg)
}

func node(id, action string, deps ...string) domain.Node {
	return domain.Node{ID: id, ActionType: action, DependsOn: deps, Params: map[string]any{}}
}

func TestExecute_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	echo := &fakeAction{name: "echo"}
	exec := newTestExecutor(t, Config{}, echo)

	graph := &domain.WorkflowGraph{
		Name: "diamond",
		Nodes: []domain.Node{
			node("A", "echo"),
			node("B", "echo", "A"),
			node("C", "echo", "A"),
			node("D", "echo", "B", "C"),
		},
	}

	report := exec.Execute(context.Background(), graph)

	if report.Status != domain.ReportStatusSuccess {
		t.Fatalf("expected success, got %s: %v", report.Status, report.Errors)
	}
	if want := []string{"A", "B", "C", "D"}; !reflect.DeepEqual(report.ExecutionTrace, want) {
		t.Errorf("expected trace %v, got %v", want, report.ExecutionTrace)
	}

	req := echo.call("D")
	if req == nil {
		t.Fatal("D was not invoked")
	}
	if !reflect.DeepEqual(req.Inputs, map[string]any{"B": "B", "C": "C"}) {
		t.Errorf("unexpected inputs of D: %v", req.Inputs)
	}
	if !reflect.DeepEqual(req.InputOrder, []string{"B", "C"}) {
		t.Errorf("unexpected input order of D: %v", req.InputOrder)
	}
	if req.Workflow != "diamond" {
		t.Errorf("expected workflow name in request, got %q", req.Workflow)
	}

	if len(report.Errors) != 0 {
		t.Errorf("expected no errors, got %v", report.Errors)
	}
	for id, res := range report.Results {
		if res.Attempts != 1 {
			t.Errorf("node %s: expected 1 attempt, got %d", id, res.Attempts)
		}
	}
}

func TestExecute_DependentStartsAfterAllDependencies(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]bool)

	var violation atomic.Value
	act := &fakeAction{name: "work", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		if req.NodeID == "join" {
			mu.Lock()
			if !finished["slow"] || !finished["fast"] {
				violation.Store("join started before its dependencies finished")
			}
			mu.Unlock()
		}
		if req.NodeID == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		mu.Lock()
		finished[req.NodeID] = true
		mu.Unlock()
		return actions.Success(nil), nil
	}}
	exec := newTestExecutor(t, Config{}, act)

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("slow", "work"),
		node("fast", "work"),
		node("join", "work", "slow", "fast"),
	}})

	if v := violation.Load(); v != nil {
		t.Fatal(v)
	}
	if report.Status != domain.ReportStatusSuccess {
		t.Errorf("expected success, got %s", report.Status)
	}
}

func TestExecute_CriticalFailureHaltsRun(t *testing.T) {
	// other объявлен раньше fetch и выполняется, пока fetch падает
	fetchCalled := make(chan struct{})
	ok := &fakeAction{name: "ok", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		if req.NodeID == "other" {
			<-fetchCalled
		}
		return actions.Success(req.NodeID), nil
	}}
	boom := &fakeAction{name: "boom", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		close(fetchCalled)
		return actions.Failure("upstream is down"), nil
	}}
	exec := newTestExecutor(t, Config{}, ok, boom)

	critical := node("fetch", "boom")
	critical.Critical = true

	graph := &domain.WorkflowGraph{Nodes: []domain.Node{
		node("other", "ok"),
		critical,
		node("sibling", "ok"),
		node("after", "ok", "other"),
		node("report", "ok", "fetch"),
	}}

	report := exec.Execute(context.Background(), graph)

	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}

	// sibling в той же волне, но объявлен после fetch и ждёт его результата
	if want := []string{"other", "fetch"}; !reflect.DeepEqual(report.ExecutionTrace, want) {
		t.Errorf("expected trace %v, got %v", want, report.ExecutionTrace)
	}
	for _, id := range []string{"sibling", "after", "report"} {
		if ok.call(id) != nil {
			t.Errorf("%s must not be invoked after critical failure", id)
		}
		if got := report.Results[id].Status; got != domain.NodeStatusSkipped {
			t.Errorf("%s: expected skipped, got %s", id, got)
		}
	}

	if got := report.Results["fetch"]; got.Status != domain.NodeStatusFailed || !strings.Contains(got.Error, "upstream is down") {
		t.Errorf("unexpected fetch result: %+v", got)
	}
	if got := report.Results["other"].Status; got != domain.NodeStatusSuccess {
		t.Errorf("in-flight sibling should finish, got %s", got)
	}

	if len(report.Errors) != 2 {
		t.Fatalf("expected node error and halt error, got %v", report.Errors)
	}
	if report.Errors[0].NodeID != "fetch" {
		t.Errorf("expected first error for fetch, got %+v", report.Errors[0])
	}
	if report.Errors[1].NodeID != "" || !strings.Contains(report.Errors[1].Message, "critical node fetch failed") {
		t.Errorf("unexpected run-level error: %+v", report.Errors[1])
	}
}

func TestExecute_CriticalFailureDeterministic(t *testing.T) {
	fail := &fakeAction{name: "fail", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		return actions.Failure("%s failed", req.NodeID), nil
	}}
	pass := &fakeAction{name: "pass"}
	exec := newTestExecutor(t, Config{Concurrency: 2}, fail, pass)

	critical := node("a", "fail")
	critical.Critical = true

	graph := &domain.WorkflowGraph{Nodes: []domain.Node{
		critical,
		node("b", "pass"),
		node("c", "pass"),
		node("d", "pass"),
		node("e", "pass"),
		node("f", "pass"),
	}}

	first := exec.Execute(context.Background(), graph)
	if want := []string{"a"}; !reflect.DeepEqual(first.ExecutionTrace, want) {
		t.Fatalf("expected trace %v, got %v", want, first.ExecutionTrace)
	}

	for i := 0; i < 200; i++ {
		report := exec.Execute(context.Background(), graph)

		if !reflect.DeepEqual(report.ExecutionTrace, first.ExecutionTrace) {
			t.Fatalf("run %d: trace %v differs from %v", i, report.ExecutionTrace, first.ExecutionTrace)
		}
		if !reflect.DeepEqual(report.Errors, first.Errors) {
			t.Fatalf("run %d: errors %v differ from %v", i, report.Errors, first.Errors)
		}
		for id, res := range first.Results {
			if got := report.Results[id]; got.Status != res.Status || got.Error != res.Error {
				t.Fatalf("run %d: result of %s %+v differs from %+v", i, id, got, res)
			}
		}
	}

	if pass.callCount() != 0 {
		t.Errorf("nodes after critical failure were invoked %d times", pass.callCount())
	}
}

func TestExecute_NonCriticalFailureIsPartial(t *testing.T) {
	ok := &fakeAction{name: "ok"}
	boom := &fakeAction{name: "boom", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		return nil, errors.New("smtp refused")
	}}
	exec := newTestExecutor(t, Config{}, ok, boom)

	graph := &domain.WorkflowGraph{Nodes: []domain.Node{
		node("scrape", "ok"),
		node("mail", "boom", "scrape"),
		node("archive", "ok", "mail"),
		node("log", "ok", "scrape"),
	}}

	report := exec.Execute(context.Background(), graph)

	if report.Status != domain.ReportStatusPartial {
		t.Fatalf("expected partial, got %s", report.Status)
	}
	if got := report.Results["log"].Status; got != domain.NodeStatusSuccess {
		t.Errorf("independent branch should succeed, got %s", got)
	}

	archive := report.Results["archive"]
	if archive.Status != domain.NodeStatusSkipped || archive.Reason != "dependency mail failed" {
		t.Errorf("unexpected archive result: %+v", archive)
	}

	if len(report.Errors) != 1 || report.Errors[0].NodeID != "mail" {
		t.Fatalf("expected single error for mail, got %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0].Message, "smtp refused") {
		t.Errorf("unexpected message: %s", report.Errors[0].Message)
	}
}

func TestExecute_TolerateFailed(t *testing.T) {
	ok := &fakeAction{name: "ok"}
	boom := &fakeAction{name: "boom", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		return actions.Failure("no data"), nil
	}}
	exec := newTestExecutor(t, Config{}, ok, boom)

	summary := node("summary", "ok", "primary", "backup")
	summary.TolerateFailed = []string{"primary"}

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("primary", "boom"),
		node("backup", "ok"),
		summary,
	}})

	if got := report.Results["summary"].Status; got != domain.NodeStatusSuccess {
		t.Fatalf("expected summary to run, got %s", got)
	}

	req := ok.call("summary")
	if _, has := req.Inputs["primary"]; has {
		t.Error("failed tolerated dependency must not appear in inputs")
	}
	if !reflect.DeepEqual(req.InputOrder, []string{"backup"}) {
		t.Errorf("unexpected input order: %v", req.InputOrder)
	}
	if report.Status != domain.ReportStatusPartial {
		t.Errorf("expected partial, got %s", report.Status)
	}
}

func TestExecute_Deterministic(t *testing.T) {
	jitter := &fakeAction{name: "jitter", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		time.Sleep(time.Duration(len(req.NodeID)%3) * time.Millisecond)
		if req.NodeID == "bad" {
			return actions.Failure("bad node"), nil
		}
		return actions.Success(req.NodeID + "!"), nil
	}}
	exec := newTestExecutor(t, Config{Concurrency: 3}, jitter)

	graph := &domain.WorkflowGraph{Nodes: []domain.Node{
		node("a", "jitter"),
		node("bb", "jitter"),
		node("bad", "jitter", "a"),
		node("cccc", "jitter", "a", "bb"),
		node("d", "jitter", "bad"),
		node("ee", "jitter", "cccc"),
	}}

	first := exec.Execute(context.Background(), graph)
	for i := 0; i < 10; i++ {
		next := exec.Execute(context.Background(), graph)

		if !reflect.DeepEqual(first.ExecutionTrace, next.ExecutionTrace) {
			t.Fatalf("trace differs: %v vs %v", first.ExecutionTrace, next.ExecutionTrace)
		}
		if !reflect.DeepEqual(first.Errors, next.Errors) {
			t.Fatalf("errors differ: %v vs %v", first.Errors, next.Errors)
		}
		if first.Status != next.Status {
			t.Fatalf("status differs: %s vs %s", first.Status, next.Status)
		}
		for id, res := range first.Results {
			other := next.Results[id]
			if res.Status != other.Status || !reflect.DeepEqual(res.Data, other.Data) || res.Error != other.Error {
				t.Fatalf("result of %s differs: %+v vs %+v", id, res, other)
			}
		}
	}
}

func TestExecute_NodeTimeout(t *testing.T) {
	hang := &fakeAction{name: "hang", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	exec := newTestExecutor(t, Config{NodeTimeout: 20 * time.Millisecond}, hang)

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("slow", "hang"),
	}})

	res := report.Results["slow"]
	if res.Status != domain.NodeStatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if !strings.Contains(res.Error, ErrNodeTimeout.Error()) {
		t.Errorf("expected timeout error, got %q", res.Error)
	}
}

func TestExecute_NodeTimeoutIgnoredByAction(t *testing.T) {
	// Действие не слушает ctx: Executor всё равно возвращается по таймауту
	release := make(chan struct{})
	defer close(release)

	stubborn := &fakeAction{name: "stubborn", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		<-release
		return actions.Success(nil), nil
	}}
	exec := newTestExecutor(t, Config{}, stubborn)

	n := node("stuck", "stubborn")
	n.TimeoutSec = 1

	start := time.Now()
	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{n}})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("executor blocked for %s", elapsed)
	}
	if !strings.Contains(report.Results["stuck"].Error, ErrNodeTimeout.Error()) {
		t.Errorf("expected timeout, got %+v", report.Results["stuck"])
	}
}

func TestExecute_PanicIsCaptured(t *testing.T) {
	panicky := &fakeAction{name: "panicky", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		panic("nil map write")
	}}
	ok := &fakeAction{name: "ok"}
	exec := newTestExecutor(t, Config{}, panicky, ok)

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("p", "panicky"),
		node("q", "ok"),
	}})

	res := report.Results["p"]
	if res.Status != domain.NodeStatusFailed || !strings.Contains(res.Error, "nil map write") {
		t.Errorf("unexpected panic result: %+v", res)
	}
	if report.Results["q"].Status != domain.NodeStatusSuccess {
		t.Error("panic must not affect sibling nodes")
	}
}

func TestExecute_MalformedResult(t *testing.T) {
	tests := []struct {
		name    string
		result  *actions.Result
		wantErr string
	}{
		{name: "nil result", result: nil, wantErr: ErrMalformedResult.Error()},
		{name: "unknown status", result: &actions.Result{Status: "maybe"}, wantErr: `unknown status "maybe"`},
		{name: "failure without message", result: &actions.Result{Status: domain.ActionStatusFailure}, wantErr: ErrActionFailed.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := &fakeAction{name: "odd", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
				return tt.result, nil
			}}
			exec := newTestExecutor(t, Config{}, act)

			report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{node("x", "odd")}})

			res := report.Results["x"]
			if res.Status != domain.NodeStatusFailed {
				t.Fatalf("expected failed, got %s", res.Status)
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, res.Error)
			}
		})
	}
}

func TestExecute_ConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight int32

	busy := &fakeAction{name: "busy", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return actions.Success(nil), nil
	}}
	exec := newTestExecutor(t, Config{Concurrency: 2}, busy)

	nodes := make([]domain.Node, 8)
	for i := range nodes {
		nodes[i] = node(string(rune('a'+i)), "busy")
	}

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: nodes})

	if report.Status != domain.ReportStatusSuccess {
		t.Fatalf("expected success, got %s", report.Status)
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Errorf("expected at most 2 nodes in flight, got %d", got)
	}
	if want := []string{"a", "b", "c", "d", "e", "f", "g", "h"}; !reflect.DeepEqual(report.ExecutionTrace, want) {
		t.Errorf("expected declaration order trace, got %v", report.ExecutionTrace)
	}
}

func TestExecute_CancelWaitsForInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	slow := &fakeAction{name: "slow", fn: func(actCtx context.Context, req *actions.Request) (*actions.Result, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		if actCtx.Err() != nil {
			return nil, actCtx.Err()
		}
		return actions.Success("done"), nil
	}}
	ok := &fakeAction{name: "ok"}
	exec := newTestExecutor(t, Config{}, slow, ok)

	go func() {
		<-started
		cancel()
	}()

	report := exec.Execute(ctx, &domain.WorkflowGraph{Nodes: []domain.Node{
		node("first", "slow"),
		node("second", "ok", "first"),
	}})

	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if got := report.Results["first"]; got.Status != domain.NodeStatusSuccess {
		t.Errorf("in-flight node should complete, got %+v", got)
	}
	second := report.Results["second"]
	if second.Status != domain.NodeStatusSkipped || second.Reason != ErrRunCancelled.Error() {
		t.Errorf("unexpected second result: %+v", second)
	}
	if ok.callCount() != 0 {
		t.Error("no node may start after cancellation")
	}

	last := report.Errors[len(report.Errors)-1]
	if last.NodeID != "" || !strings.Contains(last.Message, ErrRunCancelled.Error()) {
		t.Errorf("expected run-level cancel error, got %+v", last)
	}
}

func TestExecute_CancelAbandonsInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	hang := &fakeAction{name: "hang", fn: func(actCtx context.Context, req *actions.Request) (*actions.Result, error) {
		close(started)
		<-actCtx.Done()
		return nil, actCtx.Err()
	}}
	exec := newTestExecutor(t, Config{AbandonInFlight: true}, hang)

	go func() {
		<-started
		cancel()
	}()

	report := exec.Execute(ctx, &domain.WorkflowGraph{Nodes: []domain.Node{node("h", "hang")}})

	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	res := report.Results["h"]
	if res.Status != domain.NodeStatusFailed || !strings.Contains(res.Error, ErrNodeAbandoned.Error()) {
		t.Errorf("expected abandoned node, got %+v", res)
	}
}

func TestExecute_Retry(t *testing.T) {
	var attempts int32
	flaky := &fakeAction{name: "flaky", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return actions.Failure("try again"), nil
		}
		return actions.Success("finally"), nil
	}}
	exec := newTestExecutor(t, Config{}, flaky)

	n := node("f", "flaky")
	n.Retry = &domain.RetryPolicy{MaxAttempts: 3, Backoff: "fixed", InitialDelayMs: 1}

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{n}})

	res := report.Results["f"]
	if res.Status != domain.NodeStatusSuccess || res.Data != "finally" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
	// trace содержит узел один раз независимо от числа попыток
	if !reflect.DeepEqual(report.ExecutionTrace, []string{"f"}) {
		t.Errorf("unexpected trace: %v", report.ExecutionTrace)
	}
}

func TestExecute_RendersParamsFromInputs(t *testing.T) {
	produce := &fakeAction{name: "produce", fn: func(ctx context.Context, req *actions.Request) (*actions.Result, error) {
		return actions.Success(map[string]any{"title": "Go 1.24 released"}), nil
	}}
	consume := &fakeAction{name: "consume"}
	exec := newTestExecutor(t, Config{}, produce, consume)

	mail := node("mail", "consume", "news")
	mail.Params = map[string]any{"subject": "News: {{ .Inputs.news.title }}"}

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("news", "produce"),
		mail,
	}})

	if report.Status != domain.ReportStatusSuccess {
		t.Fatalf("expected success, got %s: %v", report.Status, report.Errors)
	}
	if got := consume.call("mail").Params["subject"]; got != "News: Go 1.24 released" {
		t.Errorf("unexpected rendered subject: %v", got)
	}
}

func TestExecute_SortDoesNotModifyUpstreamResult(t *testing.T) {
	exec := newTestExecutor(t, Config{Concurrency: 4}, actions.NewDataFilter())

	src := node("src", actions.ActionDataFilter)
	src.Params = map[string]any{"items": []any{"c", "a", "b"}}

	asc := node("sorted", actions.ActionDataFilter, "src")
	asc.Params = map[string]any{"operation": "sort"}

	head := node("head", actions.ActionDataFilter, "src")
	head.Params = map[string]any{"limit": float64(2)}

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{src, asc, head}})

	if report.Status != domain.ReportStatusSuccess {
		t.Fatalf("expected success, got %s: %v", report.Status, report.Errors)
	}

	if got, want := report.Results["src"].Data, []any{"c", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("upstream result modified: expected %v, got %v", want, got)
	}
	if got, want := report.Results["sorted"].Data, []any{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected sorted %v, got %v", want, got)
	}
	if got, want := report.Results["head"].Data, []any{"c", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected head %v, got %v", want, got)
	}
}

func TestExecute_StructuralGuard(t *testing.T) {
	ok := &fakeAction{name: "ok"}
	exec := newTestExecutor(t, Config{}, ok)

	report := exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("A", "ok", "B"),
		node("B", "ok", "A"),
	}})

	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Message, ErrStructuralGuard.Error()) {
		t.Errorf("expected single guard error, got %v", report.Errors)
	}
	if ok.callCount() != 0 || len(report.ExecutionTrace) != 0 {
		t.Error("no node may run when the guard fails")
	}
}

func TestRun_RejectsInvalidGraph(t *testing.T) {
	mailer := &fakeAction{
		name: "email_sender",
		contract: domain.ActionContract{Params: []domain.ParamSpec{
			{Name: "to", Type: domain.ParamString, Required: true},
			{Name: "subject", Type: domain.ParamString, Required: true},
		}},
	}
	exec := newTestExecutor(t, Config{}, mailer)

	n := node("mail", "email_sender")
	n.Params = map[string]any{"subject": "daily"}

	report := exec.Run(context.Background(), &domain.WorkflowGraph{Name: "digest", Nodes: []domain.Node{n}})

	if report.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if mailer.callCount() != 0 {
		t.Fatal("action must not run for an invalid graph")
	}
	if len(report.Errors) != 1 || report.Errors[0].NodeID != "mail" {
		t.Fatalf("expected one error for mail, got %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0].Message, `"to"`) {
		t.Errorf("error should name the missing parameter: %s", report.Errors[0].Message)
	}
	if len(report.Results) != 0 {
		t.Errorf("expected no results, got %v", report.Results)
	}
}

func TestRun_EmptyGraphFails(t *testing.T) {
	exec := newTestExecutor(t, Config{}, &fakeAction{name: "ok"})

	for name, report := range map[string]*domain.WorkflowReport{
		"run":     exec.Run(context.Background(), &domain.WorkflowGraph{Name: "empty"}),
		"execute": exec.Execute(context.Background(), &domain.WorkflowGraph{Name: "empty"}),
	} {
		if report.Status != domain.ReportStatusFailed {
			t.Errorf("%s: expected failed, got %s", name, report.Status)
		}
		if len(report.Errors) != 1 || report.Errors[0].NodeID != "" {
			t.Errorf("%s: expected one run-level error, got %v", name, report.Errors)
		}
		if len(report.Results) != 0 || len(report.ExecutionTrace) != 0 {
			t.Errorf("%s: expected empty results and trace", name)
		}
	}
}

func TestRun_ExecutesValidGraph(t *testing.T) {
	ok := &fakeAction{name: "ok"}
	exec := newTestExecutor(t, Config{}, ok)

	report := exec.Run(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{node("a", "ok")}})

	if report.Status != domain.ReportStatusSuccess {
		t.Errorf("expected success, got %s: %v", report.Status, report.Errors)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("finished_at must not precede started_at")
	}
}

func TestExecute_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &fakeAction{name: "ok"}
	exec := newTestExecutor(t, Config{Metrics: telemetry.NewMetrics(reg)}, ok)

	exec.Execute(context.Background(), &domain.WorkflowGraph{Nodes: []domain.Node{
		node("a", "ok"),
		node("b", "ok", "a"),
	}})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var nodeResults float64
	for _, mf := range families {
		if mf.GetName() != "agen8_node_results_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			nodeResults += m.GetCounter().GetValue()
		}
	}
	if nodeResults != 2 {
		t.Errorf("expected 2 node results, got %v", nodeResults)
	}
}

func TestNew_Defaults(t *testing.T) {
	exec := New(Config{})

	if exec.concurrency != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, exec.concurrency)
	}
	if exec.timeout != defaultNodeTimeout {
		t.Errorf("expected timeout %s, got %s", defaultNodeTimeout, exec.timeout)
	}
	if _, ok := exec.registry.Contract("web_scraper"); !ok {
		t.Error("default registry should contain builtin actions")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		policy  *domain.RetryPolicy
		want    time.Duration
	}{
		{name: "nil policy", attempt: 1, policy: nil, want: time.Second},
		{name: "fixed", attempt: 3, policy: &domain.RetryPolicy{Backoff: "fixed", InitialDelayMs: 200}, want: 200 * time.Millisecond},
		{name: "exponential", attempt: 3, policy: &domain.RetryPolicy{Backoff: "exponential", InitialDelayMs: 100}, want: 400 * time.Millisecond},
		{name: "exponential capped", attempt: 10, policy: &domain.RetryPolicy{Backoff: "exponential", InitialDelayMs: 100, MaxDelayMs: 1000}, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateBackoff(tt.attempt, tt.policy); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
