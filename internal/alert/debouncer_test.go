package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ---- shared helpers ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: time.UnixMilli(0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *memNotifier) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return m.err
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *memNotifier) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

func setup(t *testing.T, opts Options) (*Debouncer, *memNotifier, *fakeClock) {
	t.Helper()
	clk := newClock()
	nt := &memNotifier{}
	opts.Now = clk.Now
	if opts.Cooldown == 0 {
		opts.Cooldown = 60 * time.Second
	}
	d, err := New(zap.NewNop(), nt, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, nt, clk
}

func wantSends(t *testing.T, nt *memNotifier, n int) {
	t.Helper()
	if got := nt.count(); got != n {
		t.Fatalf("want %d sends, got %d (%q)", n, got, nt.texts)
	}
}

// ---- tests ----

func TestReportDown_SendsText(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	if err := d.ReportDown(ctx, "producer", "mock-topic", "broker transport failure"); err != nil {
		t.Fatal(err)
	}
	wantSends(t, nt, 1)
	if nt.last() != "broker transport failure" {
		t.Fatalf("unexpected payload %q", nt.last())
	}
}

func TestReportDown_Twice_SendsOnce(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "topicA", "fail")
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail")
	wantSends(t, nt, 1)
}

func TestReportDown_DistinctKeys_NoCrossSuppression(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "producer", "mock-topic", "broker transport failure")
	_ = d.ReportDown(ctx, "producer", "mock-topic-1", "broker transport failure")
	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 3)
}

func TestReportDown_EqualKeysFromSeparateStrings(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	sub := []byte("topic")
	_ = d.ReportDown(ctx, "consumer", string(sub), "x")
	_ = d.ReportDown(ctx, "consumer", string(append([]byte{}, sub...)), "x")
	_ = d.ReportDown(ctx, " consumer ", "topic", "x")
	wantSends(t, nt, 1)
	if d.Len() != 1 {
		t.Fatalf("want 1 tracked key, got %d", d.Len())
	}
}

func TestCooldown_BoundaryIsInclusive(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 1)

	clk.Advance(30 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 1)

	clk.Advance(30*time.Second - time.Millisecond)
	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 1)

	clk.Advance(time.Millisecond)
	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 2)
}

func TestCooldown_GatesFlipBackToDown(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "down")
	clk.Advance(time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "up")
	wantSends(t, nt, 2)

	// flip inside the window: recorded, not sent
	clk.Advance(time.Second)
	_ = d.ReportDown(ctx, "consumer", "t", "down again")
	wantSends(t, nt, 2)
	if s, _ := d.State("consumer", "t"); s != StateDown {
		t.Fatalf("want state down, got %v", s)
	}

	// cooldown is measured from the recovery send
	clk.Advance(59 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "t", "still down")
	wantSends(t, nt, 3)
	if nt.last() != "still down" {
		t.Fatalf("unexpected payload %q", nt.last())
	}
}

func TestReportUp_OnlyOnRecovery(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	// never seen -> no alert
	_ = d.ReportUp(ctx, "consumer", "t", "")
	wantSends(t, nt, 0)
	// up after up -> no alert
	clk.Advance(2 * time.Minute)
	_ = d.ReportUp(ctx, "consumer", "t", "")
	wantSends(t, nt, 0)

	// up -> down fires, down -> up fires
	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	wantSends(t, nt, 1)
	_ = d.ReportUp(ctx, "consumer", "t", "back")
	wantSends(t, nt, 2)
	if nt.last() != "back" {
		t.Fatalf("unexpected payload %q", nt.last())
	}
}

func TestReportUp_RecoveryAfterCooldown(t *testing.T) {
	d, nt, clk := setup(t, Options{GateRecovery: true})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	clk.Advance(60 * time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "")
	wantSends(t, nt, 2)
}

func TestReportUp_RecoveryAfterCooldown_DefaultPolicy(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	clk.Advance(90 * time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "back")
	wantSends(t, nt, 2)
	if nt.last() != "back" {
		t.Fatalf("unexpected payload %q", nt.last())
	}
}

func TestReportUp_FlapWithinCooldown(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = d.ReportDown(ctx, "consumer", "t", "down")
		clk.Advance(time.Second)
		_ = d.ReportUp(ctx, "consumer", "t", "up")
		clk.Advance(time.Second)
	}
	// the announced DOWN and its recovery only
	wantSends(t, nt, 2)
	if nt.texts[0] != "down" || nt.texts[1] != "up" {
		t.Fatalf("unexpected sends %q", nt.texts)
	}
	if s, _ := d.State("consumer", "t"); s != StateUp {
		t.Fatalf("want state up, got %v", s)
	}
}

func TestReportUp_UnannouncedDownIsGated(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "down")
	clk.Advance(time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "up")
	wantSends(t, nt, 2)

	// suppressed DOWN, then its recovery inside the window
	clk.Advance(time.Second)
	_ = d.ReportDown(ctx, "consumer", "t", "down")
	clk.Advance(time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "up")
	wantSends(t, nt, 2)

	// same shape once the window has passed since the last send
	clk.Advance(time.Minute)
	_ = d.ReportDown(ctx, "consumer", "t", "down")
	wantSends(t, nt, 3)
	_ = d.ReportUp(ctx, "consumer", "t", "up")
	wantSends(t, nt, 4)
}

func TestReportUp_GateRecoveryWithinCooldown(t *testing.T) {
	d, nt, clk := setup(t, Options{GateRecovery: true})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	clk.Advance(10 * time.Second)
	_ = d.ReportUp(ctx, "consumer", "t", "")
	wantSends(t, nt, 1)

	// the suppressed recovery still moved state to UP
	if s, _ := d.State("consumer", "t"); s != StateUp {
		t.Fatalf("want state up, got %v", s)
	}
}

func TestClear_ResetsStateAndCooldown(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	clk.Advance(60 * time.Second)
	_ = d.ReportUp(ctx, "consumer", "mock-topic", "")
	wantSends(t, nt, 2)

	d.Clear()
	if d.Len() != 0 {
		t.Fatalf("want empty after clear, got %d", d.Len())
	}

	clk.Advance(60 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "mock-topic", "broker transport failure")
	wantSends(t, nt, 3)

	clk.Advance(60 * time.Second)
	_ = d.ReportUp(ctx, "consumer", "mock-topic", "")
	wantSends(t, nt, 4)
}

func TestClear_FirstReportAfterIsImmediate(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	clk.Advance(time.Millisecond)
	d.Clear()
	_ = d.ReportDown(ctx, "consumer", "t", "fail")
	wantSends(t, nt, 2)

	// UP right after clear is a first observation, not a recovery
	d.Clear()
	_ = d.ReportUp(ctx, "consumer", "t", "")
	wantSends(t, nt, 2)
}

func TestSendAlert_BypassesState(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "producer", "t", "fail")
	d.SendAlert(ctx, "producer says hi")
	d.SendAlert(ctx, "producer says hi")
	wantSends(t, nt, 3)
	if nt.last() != "producer says hi" {
		t.Fatalf("unexpected payload %q", nt.last())
	}
	if d.Len() != 1 {
		t.Fatalf("sendAlert must not track keys, got %d", d.Len())
	}
}

func TestScenario_DefaultPolicy(t *testing.T) {
	d, nt, clk := setup(t, Options{})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "topicA", "fail") // t=0
	wantSends(t, nt, 1)
	clk.Advance(30 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail") // t=30000
	wantSends(t, nt, 1)
	clk.Advance(30 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail") // t=60000
	wantSends(t, nt, 2)
	_ = d.ReportUp(ctx, "consumer", "topicA", "") // t=60000, recovery is not gated
	wantSends(t, nt, 3)
	d.Clear()
	clk.Advance(time.Millisecond)
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail") // t=60001
	wantSends(t, nt, 4)
}

func TestScenario_GatedRecovery(t *testing.T) {
	d, nt, clk := setup(t, Options{GateRecovery: true})
	ctx := context.Background()

	_ = d.ReportDown(ctx, "consumer", "topicA", "fail")
	clk.Advance(60 * time.Second)
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail")
	wantSends(t, nt, 2)
	_ = d.ReportUp(ctx, "consumer", "topicA", "")
	wantSends(t, nt, 2)
	d.Clear()
	clk.Advance(time.Millisecond)
	_ = d.ReportDown(ctx, "consumer", "topicA", "fail")
	wantSends(t, nt, 3)
}

func TestReport_RejectsMissingKeyFields(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	cases := []struct{ entity, subject string }{
		{"", "t"},
		{"consumer", ""},
		{"  ", "t"},
	}
	for _, c := range cases {
		if err := d.ReportDown(ctx, c.entity, c.subject, "x"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ReportDown(%q,%q) err=%v want ErrInvalidKey", c.entity, c.subject, err)
		}
		if err := d.ReportUp(ctx, c.entity, c.subject, "x"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ReportUp(%q,%q) err=%v want ErrInvalidKey", c.entity, c.subject, err)
		}
	}
	wantSends(t, nt, 0)
	if d.Len() != 0 {
		t.Fatalf("rejected reports must not be tracked")
	}
}

func TestSinkFailure_IsLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clk := newClock()
	nt := &memNotifier{err: errors.New("webhook 500")}
	d, err := New(zap.New(core), nt, Options{Now: clk.Now, Label: "ops-bot"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := d.ReportDown(ctx, "producer", "t", "fail"); err != nil {
		t.Fatalf("sink error leaked: %v", err)
	}
	d.SendAlert(ctx, "hi")

	failed := logs.FilterMessage("alert_send_failed").All()
	if len(failed) != 2 {
		t.Fatalf("want 2 failure logs, got %d", len(failed))
	}
	if failed[0].ContextMap()["sink"] != "ops-bot" {
		t.Fatalf("want sink label in log, got %v", failed[0].ContextMap())
	}

	// the failed attempt still counts for cooldown
	_ = d.ReportDown(ctx, "producer", "t", "fail")
	wantSends(t, nt, 2)
	if s, ok := d.State("producer", "t"); !ok || s != StateDown {
		t.Fatalf("state not recorded: %v %v", s, ok)
	}
}

func TestConcurrentReports_SendOncePerWindow(t *testing.T) {
	d, nt, _ := setup(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.ReportDown(ctx, "consumer", "hot", "fail")
		}()
	}
	wg.Wait()
	wantSends(t, nt, 1)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Fatalf("want error for nil notifier")
	}
	if _, err := New(nil, &memNotifier{}, Options{Cooldown: -time.Second}); err == nil {
		t.Fatalf("want error for negative cooldown")
	}
	d, err := New(nil, &memNotifier{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.cooldown != DefaultCooldown || d.label != DefaultLabel {
		t.Fatalf("defaults not applied: %v %q", d.cooldown, d.label)
	}
}

func TestState_String(t *testing.T) {
	if StateUp.String() != "up" || StateDown.String() != "down" || State(0).String() != "unknown" {
		t.Fatalf("unexpected state strings")
	}
}
