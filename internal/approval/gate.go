// Package approval blocks pipeline progress until the operator answers a
// prompt with an affirmative or negative reply on the chat channel.
package approval

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"MarketReel/internal/model"
	"MarketReel/internal/state"
)

// Message is one inbound chat message.
type Message struct {
	ID     int64
	ChatID string
	Text   string
}

// Channel is the narrow transport the gate needs.
type Channel interface {
	SendMessage(ctx context.Context, text string) error
	// Head returns the id of the newest message currently on the channel,
	// or 0 when there is none.
	Head(ctx context.Context) (int64, error)
	// GetUpdates long-polls for messages with id > afterID.
	GetUpdates(ctx context.Context, afterID int64, wait time.Duration) ([]Message, error)
}

// Observer is told about every decisive reply. It may be nil.
type Observer func(msg Message, approved bool)

// Options configures a Gate.
type Options struct {
	ChatID       string
	Affirmative  []string
	Negative     []string
	PollWait     time.Duration
	RetryBackoff time.Duration
	Observer     Observer
}

// Gate asks the operator for yes/no approval.
type Gate struct {
	ch    Channel
	store state.Store
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a Gate. Empty token lists default to "yes" and "no".
func NewGate(ch Channel, store state.Store, opts Options) *Gate {
	opts.Affirmative = normalize(opts.Affirmative, "yes")
	opts.Negative = normalize(opts.Negative, "no")
	if opts.PollWait <= 0 {
		opts.PollWait = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	return &Gate{ch: ch, store: store, opts: opts, sleep: sleepCtx}
}

// RequestApproval sends prompt and blocks until the operator replies with an
// affirmative (true) or negative (false) token. Other replies get an
// "invalid reply" notice and the wait continues. Transport errors are
// reported and retried after a fixed back-off. Only ctx cancellation ends
// the wait without an answer.
func (g *Gate) RequestApproval(ctx context.Context, prompt string) (bool, error) {
	st, err := g.store.Load()
	if err != nil {
		return false, fmt.Errorf("load gate state: %w", err)
	}

	// Baseline before prompting, so nothing sent earlier can answer this prompt.
	// A non-empty channel's head wins even when it is below the stored offset:
	// Telegram restarts update ids after a quiet week, and keeping the old
	// offset would filter out every new reply. An empty channel keeps the
	// stored offset.
	for {
		head, err := g.ch.Head(ctx)
		if err == nil {
			if head > 0 {
				st.LastSeenMessageID = head
			}
			break
		}
		if err := g.transportError(ctx, "fetch channel head", err); err != nil {
			return false, err
		}
	}
	g.persist(st)
	log.Printf("[INFO] [approval] baseline message id %d", st.LastSeenMessageID)

	for {
		if err := g.ch.SendMessage(ctx, prompt); err == nil {
			break
		} else if err := g.transportError(ctx, "send prompt", err); err != nil {
			return false, err
		}
	}

	for {
		msgs, err := g.ch.GetUpdates(ctx, st.LastSeenMessageID, g.opts.PollWait)
		if err != nil {
			if err := g.transportError(ctx, "poll updates", err); err != nil {
				return false, err
			}
			continue
		}

		for _, m := range msgs {
			if m.ID <= st.LastSeenMessageID {
				continue
			}
			st.LastSeenMessageID = m.ID
			g.persist(st)

			if g.opts.ChatID != "" && m.ChatID != g.opts.ChatID {
				continue
			}
			reply := strings.ToLower(strings.TrimSpace(m.Text))
			switch {
			case contains(g.opts.Affirmative, reply):
				log.Printf("[INFO] [approval] approved by message %d", m.ID)
				g.observe(m, true)
				return true, nil
			case contains(g.opts.Negative, reply):
				log.Printf("[INFO] [approval] rejected by message %d", m.ID)
				g.observe(m, false)
				return false, nil
			default:
				log.Printf("[INFO] [approval] invalid reply %q (message %d)", m.Text, m.ID)
				notice := fmt.Sprintf("❓ Invalid reply %q. Please answer %q or %q.",
					strings.TrimSpace(m.Text), g.opts.Affirmative[0], g.opts.Negative[0])
				if err := g.ch.SendMessage(ctx, notice); err != nil {
					log.Printf("[WARN] [approval] send invalid-reply notice: %v", err)
				}
			}
		}

		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
}

// transportError logs and reports err, then waits out the back-off. It
// returns non-nil only when ctx is done.
func (g *Gate) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.Printf("[WARN] [approval] %s: %v, retrying in %v", op, err, g.opts.RetryBackoff)
	if sendErr := g.ch.SendMessage(ctx, fmt.Sprintf("⚠️ Approval polling error (%s): %v", op, err)); sendErr != nil {
		log.Printf("[WARN] [approval] report polling error: %v", sendErr)
	}
	return g.sleep(ctx, g.opts.RetryBackoff)
}

func (g *Gate) persist(st model.PersistedState) {
	cur, err := g.store.Load()
	if err == nil {
		cur.LastSeenMessageID = st.LastSeenMessageID
		st = cur
	}
	if err := g.store.Save(st); err != nil {
		log.Printf("[ERROR] [approval] persist offset %d: %v", st.LastSeenMessageID, err)
	}
}

func (g *Gate) observe(m Message, approved bool) {
	if g.opts.Observer != nil {
		g.opts.Observer(m, approved)
	}
}

func normalize(tokens []string, fallback string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, fallback)
	}
	return out
}

func contains(tokens []string, s string) bool {
	for _, t := range tokens {
		if t == s {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
