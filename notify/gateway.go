package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Target identifies the recipient across channels. A sender ignores the
// fields it has no use for; an empty field means the channel has no address
// for this account.
type Target struct {
	Email       string
	PhoneNumber string
	FirstName   string
}

// Sender is one delivery channel. Implementations must treat failures as
// return values and must be safe for concurrent use.
type Sender interface {
	// Channel names the transport ("sms", "email") for result tagging.
	Channel() string
	SendCode(ctx context.Context, target Target, code string) error
	SendWelcome(ctx context.Context, target Target) error
	SendLocked(ctx context.Context, target Target) error
}

// Result is the outcome of one channel's delivery attempt.
type Result struct {
	Channel string
	Err     error
}

// Delivered reports whether the channel accepted the message.
func (r Result) Delivered() bool {
	return r.Err == nil
}

// Results aggregates per-channel outcomes of one fan-out.
type Results []Result

// AllFailed reports whether no channel delivered. An empty result set counts
// as a total failure: nothing was delivered.
func (rs Results) AllFailed() bool {
	for _, r := range rs {
		if r.Delivered() {
			return false
		}
	}
	return true
}

// Delivered returns how many channels accepted the message.
func (rs Results) Delivered() int {
	n := 0
	for _, r := range rs {
		if r.Delivered() {
			n++
		}
	}
	return n
}

// Summary renders a compact per-channel delivery report for logs and audit
// metadata, e.g. "email ok, sms failed".
func (rs Results) Summary() string {
	if len(rs) == 0 {
		return "no channels configured"
	}

	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Delivered() {
			parts = append(parts, r.Channel+" ok")
		} else {
			parts = append(parts, r.Channel+" failed")
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// Gateway fans messages out to every configured sender concurrently and
// joins on all of them. One slow or failing channel never cancels another.
type Gateway struct {
	senders []Sender
	timeout time.Duration
}

// NewGateway builds a gateway over the given senders. timeout bounds each
// dispatch as a whole; zero or negative means the caller's context is the
// only bound.
func NewGateway(timeout time.Duration, senders ...Sender) *Gateway {
	return &Gateway{
		senders: senders,
		timeout: timeout,
	}
}

// Channels lists the configured channel names in sender order.
func (g *Gateway) Channels() []string {
	names := make([]string, len(g.senders))
	for i, s := range g.senders {
		names[i] = s.Channel()
	}
	return names
}

// SendCode delivers a verification code on every channel.
func (g *Gateway) SendCode(ctx context.Context, target Target, code string) Results {
	return g.fanOut(ctx, func(ctx context.Context, s Sender) error {
		return s.SendCode(ctx, target, code)
	})
}

// SendWelcome delivers an account-created notice on every channel.
func (g *Gateway) SendWelcome(ctx context.Context, target Target) Results {
	return g.fanOut(ctx, func(ctx context.Context, s Sender) error {
		return s.SendWelcome(ctx, target)
	})
}

// SendLocked delivers an account-locked notice on every channel.
func (g *Gateway) SendLocked(ctx context.Context, target Target) Results {
	return g.fanOut(ctx, func(ctx context.Context, s Sender) error {
		return s.SendLocked(ctx, target)
	})
}

func (g *Gateway) fanOut(ctx context.Context, send func(context.Context, Sender) error) Results {
	if g == nil || len(g.senders) == 0 {
		return nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results := make(Results, len(g.senders))
	var wg sync.WaitGroup

	for i, sender := range g.senders {
		wg.Add(1)
		go func(i int, sender Sender) {
			defer wg.Done()
			results[i] = Result{
				Channel: sender.Channel(),
				Err:     safeSend(ctx, sender, send),
			}
		}(i, sender)
	}
	wg.Wait()

	return results
}

// safeSend converts a panicking sender into a failed Result. The gateway
// contract is that nothing escapes past this boundary.
func safeSend(ctx context.Context, sender Sender, send func(context.Context, Sender) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender %s panicked: %v", sender.Channel(), r)
		}
	}()
	return send(ctx, sender)
}
