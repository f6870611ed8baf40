package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/aura-studio/lambda-bridge/security"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testEvent struct {
	Op        string
	Principal string
	Malformed bool
}

type testResponse struct {
	Status int
	Body   string
}

type testReader struct{}

func (testReader) ReadRequest(ctx context.Context, ev testEvent, _ *security.Context) (*http.Request, error) {
	if ev.Malformed {
		return nil, errors.New("malformed event")
	}
	return httptest.NewRequest(http.MethodPost, "/"+ev.Op, nil).WithContext(ctx), nil
}

type testWriter struct{}

func (testWriter) WriteResponse(rsp *capture.Response) (testResponse, error) {
	return testResponse{Status: rsp.StatusCode(), Body: string(rsp.Body())}, nil
}

type testSecurityWriter struct{}

func (testSecurityWriter) WriteSecurityContext(_ context.Context, ev testEvent) (*security.Context, error) {
	if ev.Principal == "" {
		return nil, nil
	}
	return &security.Context{Principal: ev.Principal, AuthType: security.AuthTypeCustom}, nil
}

type pingEntryPoint struct {
	name    string
	handler http.HandlerFunc
}

func (p *pingEntryPoint) Init(registry.Config) error { return nil }

func (p *pingEntryPoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.handler != nil {
		p.handler(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":200,"from":%q}`, p.name)
}

func wireCounting(ep registry.EntryPoint, calls *atomic.Int32) bootstrap.Initializer {
	return func(_ context.Context, reg *registry.Registry) error {
		calls.Add(1)
		_, err := reg.Add(registry.DispatcherName, ep)
		return err
	}
}

func collaborators() bridge.Collaborators[testEvent, testResponse] {
	return bridge.Collaborators[testEvent, testResponse]{
		RequestReader:  testReader{},
		ResponseWriter: testWriter{},
		SecurityWriter: testSecurityWriter{},
	}
}

func newBridge(ep registry.EntryPoint, calls *atomic.Int32, opts ...bridge.Option) *bridge.Bridge[testEvent, testResponse] {
	return bridge.New(bootstrap.NewGate(), nil, wireCounting(ep, calls), collaborators(), opts...)
}

func TestHandlePingTwice(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{name: "first"}, &calls)

	for i := 0; i < 2; i++ {
		rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
		if err != nil {
			t.Fatalf("invocation %d: Handle error: %v", i, err)
		}
		if rsp.Status != http.StatusOK {
			t.Errorf("invocation %d: Status = %d, want 200", i, rsp.Status)
		}
		if rsp.Body != `{"status":200,"from":"first"}` {
			t.Errorf("invocation %d: Body = %q", i, rsp.Body)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("wiring ran %d times, want 1", calls.Load())
	}
	if !b.Gate().Initialized() {
		t.Error("gate not initialized")
	}
	if b.Registry().Len() != 1 {
		t.Errorf("Registry.Len = %d, want 1", b.Registry().Len())
	}
}

func TestHandleMalformedEvent(t *testing.T) {
	var (
		calls   atomic.Int32
		handled atomic.Int32
		last    *bridge.Invocation
	)
	c := collaborators()
	c.ExceptionHandler = bridge.ExceptionHandlerFunc(func(ctx context.Context, err error, w http.ResponseWriter) {
		handled.Add(1)
		bridge.JSONExceptionHandler{}.HandleError(ctx, err, w)
	})
	b := bridge.New(bootstrap.NewGate(), nil, wireCounting(&pingEntryPoint{}, &calls), c,
		bridge.WithStateHook(func(inv *bridge.Invocation) { last = inv }))

	rsp, err := b.Handle(context.Background(), testEvent{Malformed: true})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Status < 300 {
		t.Errorf("Status = %d, want non-2xx", rsp.Status)
	}
	if rsp.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rsp.Status)
	}
	if handled.Load() != 1 {
		t.Errorf("exception handler ran %d times, want 1", handled.Load())
	}
	if last == nil || last.State != bridge.StateFailed {
		t.Fatalf("last state = %v, want Failed", last)
	}
	if !last.Signal.Signaled() || last.Signal.Count() != 0 {
		t.Errorf("signal not fired: signaled=%v count=%d", last.Signal.Signaled(), last.Signal.Count())
	}

	last.Response.FinalizeAndSignal()
	if last.Signal.Count() != 0 {
		t.Errorf("signal count went to %d after second finalize", last.Signal.Count())
	}
}

func TestSecondEntryPointRejected(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{name: "first"}, &calls)

	if _, err := b.Handle(context.Background(), testEvent{Op: "ping"}); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	second := &pingEntryPoint{name: "second"}
	if _, err := b.Registry().Add("other", second); !errors.Is(err, registry.ErrUnsupportedRegistration) {
		t.Errorf("Add(other) err = %v, want ErrUnsupportedRegistration", err)
	}
	if _, err := b.Registry().Add(registry.DispatcherName, second); !errors.Is(err, registry.ErrUnsupportedRegistration) {
		t.Errorf("Add(dispatcher) err = %v, want ErrUnsupportedRegistration", err)
	}
	if _, err := b.Registry().AddNamed("other", "pingEntryPoint"); !errors.Is(err, registry.ErrUnsupportedRegistration) {
		t.Errorf("AddNamed err = %v, want ErrUnsupportedRegistration", err)
	}

	rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Status != http.StatusOK || rsp.Body != `{"status":200,"from":"first"}` {
		t.Errorf("response = %+v, want first entry point", rsp)
	}
}

func TestHandleCompletionTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{handler: func(http.ResponseWriter, *http.Request) {
		<-release
	}}, &calls, bridge.WithTimeout(50*time.Millisecond))

	start := time.Now()
	rsp, err := b.Handle(context.Background(), testEvent{Op: "slow"})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Status != http.StatusGatewayTimeout {
		t.Errorf("Status = %d, want 504", rsp.Status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Handle took %v", elapsed)
	}
}

func TestHandleUsesContextDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{handler: func(http.ResponseWriter, *http.Request) {
		<-release
	}}, &calls, bridge.WithTimeout(time.Minute), bridge.WithDeadlineMargin(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	rsp, err := b.Handle(ctx, testEvent{Op: "slow"})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Status != http.StatusGatewayTimeout {
		t.Errorf("Status = %d, want 504", rsp.Status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Handle took %v, deadline not honoured", elapsed)
	}
}

func TestHandleDispatchPanic(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{handler: func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}}, &calls)

	rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rsp.Status)
	}
	if rsp.Body != `{"message":"Internal Server Error"}` {
		t.Errorf("Body = %q", rsp.Body)
	}
}

func TestHandleBootstrapFailureRetries(t *testing.T) {
	var attempts atomic.Int32
	ep := &pingEntryPoint{name: "first"}
	wire := func(_ context.Context, reg *registry.Registry) error {
		if attempts.Add(1) == 1 {
			return errors.New("context refused to start")
		}
		_, err := reg.Add(registry.DispatcherName, ep)
		return err
	}
	b := bridge.New(bootstrap.NewGate(), nil, wire, collaborators())

	rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
	if !errors.Is(err, bridge.ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}
	var initErr *bootstrap.InitError
	if !errors.As(err, &initErr) || initErr.Attempt != 1 {
		t.Errorf("err = %#v, want InitError for attempt 1", err)
	}
	if rsp.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", rsp.Status)
	}
	if b.Gate().Initialized() {
		t.Fatal("gate initialized after failure")
	}

	rsp, err = b.Handle(context.Background(), testEvent{Op: "ping"})
	if err != nil {
		t.Fatalf("retry Handle error: %v", err)
	}
	if rsp.Status != http.StatusOK {
		t.Errorf("retry Status = %d, want 200", rsp.Status)
	}
	if b.Gate().Attempts() != 2 {
		t.Errorf("Attempts = %d, want 2", b.Gate().Attempts())
	}
}

type panickingEntryPoint struct{}

func (panickingEntryPoint) Init(registry.Config) error { panic("route conflict") }

func (panickingEntryPoint) ServeHTTP(http.ResponseWriter, *http.Request) {}

func TestHandleEntryPointInitPanicRetries(t *testing.T) {
	var attempts atomic.Int32
	factory := func() (registry.EntryPoint, error) {
		if attempts.Add(1) == 1 {
			return panickingEntryPoint{}, nil
		}
		return &pingEntryPoint{name: "second"}, nil
	}
	b := bridge.New(bootstrap.NewGate(), nil, bootstrap.FromFactory(factory), collaborators())

	if _, err := b.Handle(context.Background(), testEvent{Op: "ping"}); !errors.Is(err, bridge.ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}

	rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
	if err != nil {
		t.Fatalf("retry Handle error: %v", err)
	}
	if rsp.Status != http.StatusOK || rsp.Body != `{"status":200,"from":"second"}` {
		t.Errorf("retry response = %+v", rsp)
	}
	if b.Gate().Attempts() != 2 {
		t.Errorf("Attempts = %d, want 2", b.Gate().Attempts())
	}
}

func TestHandleStateTransitions(t *testing.T) {
	var (
		calls  atomic.Int32
		states []bridge.State
	)
	b := newBridge(&pingEntryPoint{}, &calls, bridge.WithStateHook(func(inv *bridge.Invocation) {
		states = append(states, inv.State)
	}))

	if _, err := b.Handle(context.Background(), testEvent{Op: "ping"}); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	want := []bridge.State{
		bridge.StateIdle,
		bridge.StateBootstrapping,
		bridge.StateTranslating,
		bridge.StateAwaitingCompletion,
		bridge.StateReturning,
	}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if !states[len(states)-1].Terminal() {
		t.Error("last state is not terminal")
	}
}

func TestHandleInvocationIDAndSecurity(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{handler: func(w http.ResponseWriter, r *http.Request) {
		id, _ := bridge.InvocationIDFromContext(r.Context())
		sc, _ := security.FromRequest(r)
		principal := ""
		if sc != nil {
			principal = sc.Principal
		}
		_, _ = fmt.Fprintf(w, "%s/%s", id, principal)
	}}, &calls)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	rsp, err := b.Handle(ctx, testEvent{Op: "whoami", Principal: "alice"})
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rsp.Body != "req-1/alice" {
		t.Errorf("Body = %q, want req-1/alice", rsp.Body)
	}
}

func TestHandleConcurrentFirstUse(t *testing.T) {
	var calls atomic.Int32
	b := newBridge(&pingEntryPoint{}, &calls)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
			if err == nil && rsp.Status != http.StatusOK {
				err = fmt.Errorf("status %d", rsp.Status)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Handle error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("wiring ran %d times, want 1", calls.Load())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", bridge.ErrTranslation), http.StatusInternalServerError},
		{fmt.Errorf("x: %w", bridge.ErrDispatch), http.StatusInternalServerError},
		{fmt.Errorf("x: %w", bridge.ErrCompletionTimeout), http.StatusGatewayTimeout},
		{&bootstrap.InitError{Attempt: 1, Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := bridge.StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestJSONExceptionHandlerDebugMode(t *testing.T) {
	w := httptest.NewRecorder()
	bridge.JSONExceptionHandler{DebugMode: true}.HandleError(context.Background(), fmt.Errorf("x: %w", bridge.ErrTranslation), w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Code = %d, want 500", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Body.String(); got != `{"message":"x: bridge: translation failed"}` {
		t.Errorf("Body = %q", got)
	}
}

func TestProperty_WiringRunsOnceAcrossInvocations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("N invocations wire the entry point exactly once", prop.ForAll(
		func(n int) bool {
			var calls atomic.Int32
			b := newBridge(&pingEntryPoint{}, &calls)
			for i := 0; i < n; i++ {
				rsp, err := b.Handle(context.Background(), testEvent{Op: "ping"})
				if err != nil || rsp.Status != http.StatusOK {
					return false
				}
			}
			return calls.Load() == 1 && b.Registry().Len() == 1
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
