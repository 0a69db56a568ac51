// Package alert decides whether an up/down report for an (entity, subject)
// pair is forwarded to the notification channel.
//
// DOWN reports fire on the first observation and on every UP->DOWN flip,
// and repeat as reminders while a key stays DOWN, never more than once per
// cooldown window. UP reports fire only on recovery from DOWN. The cooldown
// is measured from the last alert actually sent for the key. A recovery may
// follow its announced DOWN inside the window; a recovery from a DOWN that
// was never announced is gated like any other alert.
package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertdebounce/internal/notify"
)

const (
	DefaultCooldown = 60 * time.Second
	DefaultLabel    = "default"
)

// Options tunes a Debouncer. The zero value is usable.
type Options struct {
	// Cooldown is the minimum time between two sent alerts for the same key.
	// Zero means DefaultCooldown.
	Cooldown time.Duration
	// Label names the sink in log lines.
	Label string
	// GateRecovery applies the cooldown to every recovery alert. When false
	// a recovery from an announced DOWN skips the cooldown.
	GateRecovery bool
	// Now overrides the clock; tests use it.
	Now func() time.Time
}

// Debouncer tracks the last state and last sent alert per Key and forwards
// alert text to a single sink. It is safe for concurrent use.
type Debouncer struct {
	log          *zap.Logger
	sink         notify.Notifier
	cooldown     time.Duration
	label        string
	gateRecovery bool
	now          func() time.Time

	mu        sync.Mutex
	lastState map[Key]State
	lastAlert map[Key]time.Time
	lastSent  map[Key]State
}

// New returns a Debouncer delivering to sink. A nil logger discards logs.
func New(logger *zap.Logger, sink notify.Notifier, opts Options) (*Debouncer, error) {
	if sink == nil {
		return nil, errors.New("alert: notifier is required")
	}
	if opts.Cooldown < 0 {
		return nil, errors.New("alert: cooldown must not be negative")
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		log:          logger,
		sink:         sink,
		cooldown:     opts.Cooldown,
		label:        opts.Label,
		gateRecovery: opts.GateRecovery,
		now:          opts.Now,
		lastState:    make(map[Key]State),
		lastAlert:    make(map[Key]time.Time),
		lastSent:     make(map[Key]State),
	}, nil
}

// ReportDown records that subject is unhealthy for entity and sends text
// when the key is newly down, flipped from up, or due a reminder.
func (d *Debouncer) ReportDown(ctx context.Context, entity, subject, text string) error {
	return d.report(ctx, entity, subject, StateDown, text)
}

// ReportUp records that subject is healthy again. It only sends when the
// previous recorded state was DOWN.
func (d *Debouncer) ReportUp(ctx context.Context, entity, subject, text string) error {
	return d.report(ctx, entity, subject, StateUp, text)
}

// SendAlert forwards text unconditionally. Tracked state is not consulted.
// The call waits for the delivery attempt; failures are only logged.
func (d *Debouncer) SendAlert(ctx context.Context, text string) {
	d.deliver(ctx, zap.String("kind", "direct"), text)
}

// Clear forgets every tracked key. The next report for any key behaves as
// a first observation.
func (d *Debouncer) Clear() {
	d.mu.Lock()
	d.lastState = make(map[Key]State)
	d.lastAlert = make(map[Key]time.Time)
	d.lastSent = make(map[Key]State)
	d.mu.Unlock()
	d.log.Info("alert_state_cleared", zap.String("sink", d.label))
}

// Len returns the number of tracked keys.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lastState)
}

// State returns the last recorded state for the pair.
func (d *Debouncer) State(entity, subject string) (State, bool) {
	key, err := NewKey(entity, subject)
	if err != nil {
		return 0, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.lastState[key]
	return s, ok
}

func (d *Debouncer) report(ctx context.Context, entity, subject string, next State, text string) error {
	key, err := NewKey(entity, subject)
	if err != nil {
		return err
	}

	// Decide and record under the lock. The sink is called after unlocking.
	d.mu.Lock()
	now := d.now()
	prev, seen := d.lastState[key]
	d.lastState[key] = next
	send := d.shouldSend(key, prev, seen, next, now)
	if send {
		d.lastAlert[key] = now
		d.lastSent[key] = next
	}
	d.mu.Unlock()

	if !send {
		d.log.Debug("alert_suppressed",
			zap.String("entity", key.Entity),
			zap.String("subject", key.Subject),
			zap.Stringer("state", next),
		)
		return nil
	}

	kind := "down"
	if next == StateUp {
		kind = "recovery"
	}
	d.deliver(ctx, zap.String("kind", kind), text,
		zap.String("entity", key.Entity),
		zap.String("subject", key.Subject),
	)
	return nil
}

// shouldSend must be called with d.mu held.
func (d *Debouncer) shouldSend(key Key, prev State, seen bool, next State, now time.Time) bool {
	switch next {
	case StateDown:
		return d.cooledLocked(key, now)
	case StateUp:
		if !seen || prev != StateDown {
			return false
		}
		if !d.gateRecovery && d.lastSent[key] == StateDown {
			return true
		}
		return d.cooledLocked(key, now)
	}
	return false
}

// cooledLocked reports whether at least one full cooldown has passed since
// the last sent alert. The boundary is inclusive.
func (d *Debouncer) cooledLocked(key Key, now time.Time) bool {
	last, ok := d.lastAlert[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= d.cooldown
}

func (d *Debouncer) deliver(ctx context.Context, kind zap.Field, text string, extra ...zap.Field) {
	fields := append([]zap.Field{kind, zap.String("sink", d.label)}, extra...)
	if err := d.sink.Send(ctx, text); err != nil {
		d.log.Warn("alert_send_failed", append(fields, zap.Error(err))...)
		return
	}
	d.log.Info("alert_sent", fields...)
}
