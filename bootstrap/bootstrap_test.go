package bootstrap_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type nopEntryPoint struct{}

func (nopEntryPoint) Init(registry.Config) error { return nil }
func (nopEntryPoint) ServeHTTP(http.ResponseWriter, *http.Request) {}

func countingInit(calls *atomic.Int32) bootstrap.Initializer {
	return func(ctx context.Context, reg *registry.Registry) error {
		calls.Add(1)
		_, err := reg.Add(reg.Name(), nopEntryPoint{})
		return err
	}
}

func TestGateRunsOnce(t *testing.T) {
	g := bootstrap.NewGate()
	reg := registry.New("")
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		if err := g.EnsureInitialized(context.Background(), reg, countingInit(&calls)); err != nil {
			t.Fatalf("EnsureInitialized #%d error: %v", i, err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("wiring ran %d times, want 1", calls.Load())
	}
	if !g.Initialized() {
		t.Error("gate should be initialized")
	}
	if g.Attempts() != 1 {
		t.Errorf("Attempts = %d, want 1", g.Attempts())
	}
}

func TestGateFailureAllowsRetry(t *testing.T) {
	g := bootstrap.NewGate()
	reg := registry.New("")
	boom := errors.New("boom")
	var calls int

	init := func(ctx context.Context, reg *registry.Registry) error {
		calls++
		if calls == 1 {
			return boom
		}
		_, err := reg.Add(reg.Name(), nopEntryPoint{})
		return err
	}

	err := g.EnsureInitialized(context.Background(), reg, init)
	if !errors.Is(err, bootstrap.ErrInitialization) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrInitialization wrapping boom", err)
	}
	var initErr *bootstrap.InitError
	if !errors.As(err, &initErr) || initErr.Attempt != 1 {
		t.Fatalf("err = %#v, want *InitError with Attempt 1", err)
	}
	if g.Initialized() {
		t.Fatal("gate should stay uninitialized after a failure")
	}

	if err := g.EnsureInitialized(context.Background(), reg, init); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if !g.Initialized() || g.Attempts() != 2 {
		t.Errorf("Initialized = %v, Attempts = %d", g.Initialized(), g.Attempts())
	}
}

func TestGateRecoversPanic(t *testing.T) {
	g := bootstrap.NewGate()
	err := g.EnsureInitialized(context.Background(), registry.New(""), func(context.Context, *registry.Registry) error {
		panic("wiring exploded")
	})
	if !errors.Is(err, bootstrap.ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}
	if g.Initialized() {
		t.Error("gate should stay uninitialized after a panic")
	}
}

func TestGateNilInitializer(t *testing.T) {
	g := bootstrap.NewGate()
	if err := g.EnsureInitialized(context.Background(), registry.New(""), nil); !errors.Is(err, bootstrap.ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}
}

func TestGateConcurrentFirstUse(t *testing.T) {
	g := bootstrap.NewGate()
	reg := registry.New("")
	var calls atomic.Int32

	slow := func(ctx context.Context, reg *registry.Registry) error {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, err := reg.Add(reg.Name(), nopEntryPoint{})
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.EnsureInitialized(context.Background(), reg, slow); err != nil {
				errs <- err
				return
			}
			// nobody proceeds against a half-wired registry
			if _, err := reg.Lookup(reg.Name()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("wiring ran %d times, want 1", calls.Load())
	}
}

func TestGateWaitHonoursContext(t *testing.T) {
	g := bootstrap.NewGate()
	reg := registry.New("")
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = g.EnsureInitialized(context.Background(), reg, func(ctx context.Context, reg *registry.Registry) error {
			close(started)
			<-release
			_, err := reg.Add(reg.Name(), nopEntryPoint{})
			return err
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.EnsureInitialized(ctx, reg, func(context.Context, *registry.Registry) error {
		t.Error("second wiring must not run")
		return nil
	})
	if !errors.Is(err, bootstrap.ErrInitialization) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrInitialization wrapping DeadlineExceeded", err)
	}

	close(release)
}

func TestFromFactory(t *testing.T) {
	reg := registry.New("")
	init := bootstrap.FromFactory(func() (registry.EntryPoint, error) { return nopEntryPoint{}, nil })
	if err := init(context.Background(), reg); err != nil {
		t.Fatalf("init error: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}

	factoryErr := errors.New("factory")
	bad := bootstrap.FromFactory(func() (registry.EntryPoint, error) { return nil, factoryErr })
	if err := bad(context.Background(), registry.New("")); !errors.Is(err, factoryErr) {
		t.Errorf("err = %v, want factory error", err)
	}
	if err := bootstrap.FromFactory(nil)(context.Background(), registry.New("")); err == nil {
		t.Error("nil factory should fail")
	}
}

func TestForBindsGateToRegistry(t *testing.T) {
	a, b := registry.New(""), registry.New("")
	if bootstrap.For(a) != bootstrap.For(a) {
		t.Error("same registry should share a gate")
	}
	if bootstrap.For(a) == bootstrap.For(b) {
		t.Error("different registries should not share a gate")
	}

	var calls atomic.Int32
	for _, reg := range []*registry.Registry{a, b} {
		if err := bootstrap.For(reg).EnsureInitialized(context.Background(), reg, countingInit(&calls)); err != nil {
			t.Fatalf("EnsureInitialized error: %v", err)
		}
		if reg.Len() != 1 {
			t.Errorf("Len = %d, want 1", reg.Len())
		}
	}
	if calls.Load() != 2 {
		t.Errorf("wiring ran %d times, want 2", calls.Load())
	}
}

func TestGateRefusesForeignRegistry(t *testing.T) {
	g := bootstrap.NewGate()
	var calls atomic.Int32
	if err := g.EnsureInitialized(context.Background(), registry.New(""), countingInit(&calls)); err != nil {
		t.Fatalf("EnsureInitialized error: %v", err)
	}

	err := g.EnsureInitialized(context.Background(), registry.New(""), countingInit(&calls))
	if !errors.Is(err, bootstrap.ErrForeignRegistry) || !errors.Is(err, bootstrap.ErrInitialization) {
		t.Fatalf("err = %v, want ErrForeignRegistry", err)
	}
	if calls.Load() != 1 {
		t.Errorf("wiring ran %d times, want 1", calls.Load())
	}
}

// Over any sequence of failing and succeeding attempts the wiring completes at
// most once, and exactly once when any attempt succeeds.
func TestGateAtMostOnceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("wiring completes at most once", prop.ForAll(
		func(outcomes []bool) bool {
			g := bootstrap.NewGate()
			reg := registry.New("")
			var completed int
			i := 0
			init := func(ctx context.Context, reg *registry.Registry) error {
				ok := outcomes[i]
				if !ok {
					return errors.New("fail")
				}
				completed++
				_, err := reg.Add(reg.Name(), nopEntryPoint{})
				return err
			}

			anySucceeded := false
			for i = 0; i < len(outcomes); i++ {
				if g.EnsureInitialized(context.Background(), reg, init) == nil {
					anySucceeded = true
				}
			}

			if anySucceeded {
				return completed == 1 && g.Initialized() && reg.Len() == 1
			}
			return completed == 0 && !g.Initialized() && reg.Len() == 0
		},
		gen.SliceOfN(10, gen.Bool()),
	))

	properties.TestingRun(t)
}
