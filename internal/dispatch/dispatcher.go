// Package dispatch implements the Outbound Dispatcher: text splitting,
// transport selection, and per-segment retry.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/namastexlabs/automagik-omni/internal/errs"
	"github.com/namastexlabs/automagik-omni/internal/instance"
)

// Result is the outcome of a dispatch call.
type Result struct {
	Success      bool
	MessageCount int
	Err          *errs.Error
}

// Dispatcher routes a reply to the right transport for the instance's
// channel and retries transient failures.
type Dispatcher struct {
	retry RetryPolicy
	sleep func(time.Duration)

	rateLimit float64 // segments/sec per instance, 0 disables limiting
	limiters  sync.Map // instance name -> *rate.Limiter
}

// New constructs a Dispatcher with the default retry policy and no
// per-instance send-rate limiting.
func New() *Dispatcher {
	return &Dispatcher{retry: DefaultRetryPolicy(), sleep: time.Sleep}
}

// NewWithRateLimit constructs a Dispatcher that additionally caps outbound
// segments per instance to rps per second (burst equal to rps, minimum 1),
// smoothing bursts of split segments against provider rate limits.
func NewWithRateLimit(rps float64) *Dispatcher {
	d := New()
	d.rateLimit = rps
	return d
}

func (d *Dispatcher) limiterFor(instanceName string) *rate.Limiter {
	if d.rateLimit <= 0 {
		return nil
	}
	if v, ok := d.limiters.Load(instanceName); ok {
		return v.(*rate.Limiter)
	}
	burst := int(d.rateLimit)
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(d.rateLimit), burst)
	actual, _ := d.limiters.LoadOrStore(instanceName, l)
	return actual.(*rate.Limiter)
}

// Send splits reply per the instance's channel and auto-split setting,
// sends each segment over the channel's transport, retrying transient
// failures, and reports the aggregate outcome. splitOverride, when
// non-nil, takes precedence over inst.EnableAutoSplit.
func (d *Dispatcher) Send(ctx context.Context, inst instance.Instance, transport Transport, recipient, reply string, splitOverride *bool) Result {
	split := inst.EnableAutoSplit
	if splitOverride != nil {
		split = *splitOverride
	}

	var segments []string
	switch inst.Channel {
	case instance.ChannelDiscord:
		segments = SplitDiscord(reply, split)
	default:
		segments = SplitWhatsApp(reply, split)
	}

	sent := 0
	for _, seg := range segments {
		if limiter := d.limiterFor(inst.Name); limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return Result{Success: false, MessageCount: sent, Err: errs.New(errs.KindShutdown, errs.StageOutboundRequest, err)}
			}
		}
		if err := d.sendWithRetry(ctx, transport, recipient, seg); err != nil {
			return Result{Success: false, MessageCount: sent, Err: err}
		}
		sent++
	}
	return Result{Success: true, MessageCount: sent}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, transport Transport, recipient, segment string) *errs.Error {
	var lastErr SendResult
	for attempt := 0; attempt < d.retry.MaxAttempts; attempt++ {
		res := transport.Send(ctx, recipient, segment)
		if res.Err == nil && (res.StatusCode == 0 || (res.StatusCode >= 200 && res.StatusCode < 300)) {
			return nil
		}
		lastErr = res
		if res.Err == ErrBotNotRunning {
			return errs.New(errs.KindOutboundBotGone, errs.StageOutboundRequest, res.Err)
		}
		if !Retryable(res.StatusCode) {
			break
		}
		if attempt < d.retry.MaxAttempts-1 {
			slog.Warn("dispatch: retrying outbound send", "attempt", attempt+1, "status", res.StatusCode)
			d.sleep(d.retry.Backoff(attempt))
		}
	}
	return classifySendError(lastErr)
}

// classifySendError maps an exhausted-retries outcome onto the outbound
// taxonomy. Bot-missing is classified earlier (no retry); what's left here
// is either a connect/transport failure (treated as outbound_timeout, the
// closest taxonomy entry to "the peer never completed the exchange") or a
// non-2xx HTTP status (outbound_http).
func classifySendError(res SendResult) *errs.Error {
	if res.Err != nil {
		return errs.New(errs.KindOutboundTimeout, errs.StageOutboundRequest, res.Err)
	}
	return errs.New(errs.KindOutboundHTTP, errs.StageOutboundRequest, nil)
}
