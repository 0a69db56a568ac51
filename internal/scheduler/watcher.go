package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertdebounce/internal/probe"
)

// Reporter receives health observations; *alert.Debouncer implements it.
type Reporter interface {
	ReportDown(ctx context.Context, entity, subject, text string) error
	ReportUp(ctx context.Context, entity, subject, text string) error
	Clear()
}

type Watcher struct {
	Logger      *zap.Logger
	Reporter    Reporter
	Checkers    *probe.MultiChecker
	Targets     []string
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	ResetEvery  time.Duration
}

func NewWatcher(
	logger *zap.Logger,
	reporter Reporter,
	checkers *probe.MultiChecker,
	targets []string,
	interval time.Duration,
	timeout time.Duration,
	concurrency int,
) *Watcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Watcher{
		Logger:      logger,
		Reporter:    reporter,
		Checkers:    checkers,
		Targets:     targets,
		Interval:    interval,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// When ResetEvery is set the reporter's tracked state is cleared on that
// cadence so the key space stays bounded.
func (w *Watcher) Run(ctx context.Context) {
	if w.Interval == 0 || len(w.Targets) == 0 {
		w.Logger.Info("watcher_disabled")
		return
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	var reset <-chan time.Time
	if w.ResetEvery > 0 {
		rt := time.NewTicker(w.ResetEvery)
		defer rt.Stop()
		reset = rt.C
	}

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("watcher_stopped")
			return
		case <-reset:
			w.Reporter.Clear()
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	sem := make(chan struct{}, w.Concurrency)
	var wg sync.WaitGroup

	for _, target := range w.Targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(target string) {
			defer func() { <-sem }()
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, w.Timeout)
			defer cancel()

			for _, res := range w.Checkers.Run(cctx, target) {
				w.report(ctx, target, res)
			}
		}(target)
	}

	wg.Wait()
}

func (w *Watcher) report(ctx context.Context, target string, res probe.Result) {
	var err error
	if res.Success {
		err = w.Reporter.ReportUp(ctx, res.Name, target,
			fmt.Sprintf("RECOVERED [%s] %s\n%s", res.Name, target, describe(res)))
	} else {
		err = w.Reporter.ReportDown(ctx, res.Name, target,
			fmt.Sprintf("DOWN [%s] %s\n%s", res.Name, target, describe(res)))
	}
	if err != nil {
		w.Logger.Warn("watcher_report_error",
			zap.String("checker", res.Name),
			zap.String("target", target),
			zap.Error(err),
		)
		return
	}
	w.Logger.Debug("watcher_checked",
		zap.String("checker", res.Name),
		zap.String("target", target),
		zap.Bool("up", res.Success),
		zap.Int("status", res.StatusCode),
		zap.Float64("latency_ms", res.LatencyMS),
		zap.String("reason", res.Message),
	)
}

func describe(res probe.Result) string {
	httpTxt := "n/a"
	if res.StatusCode != 0 {
		httpTxt = fmt.Sprintf("%d", res.StatusCode)
	}
	return fmt.Sprintf("HTTP: %s\nLatency: %.0f ms\nReason: %s", httpTxt, res.LatencyMS, res.Message)
}
