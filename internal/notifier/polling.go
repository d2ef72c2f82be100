package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketReel/internal/approval"
)

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// GetUpdates long-polls for updates newer than afterID. Message ids are
// Telegram update ids, which increase monotonically per bot. Updates that
// carry no text message are returned with empty text so the caller can
// still advance its offset past them.
func (t *TelegramNotifier) GetUpdates(ctx context.Context, afterID int64, wait time.Duration) ([]approval.Message, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(afterID+1, 10))
	q.Set("timeout", strconv.Itoa(int(wait/time.Second)))
	q.Set("allowed_updates", `["message"]`)

	updates, err := t.getUpdates(ctx, q)
	if err != nil {
		return nil, err
	}
	msgs := make([]approval.Message, 0, len(updates))
	for _, u := range updates {
		m := approval.Message{ID: u.UpdateID}
		if u.Message != nil {
			m.Text = strings.TrimSpace(u.Message.Text)
			m.ChatID = strconv.FormatInt(u.Message.Chat.ID, 10)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Head returns the newest update id on the bot's queue, or 0 when the queue
// is empty.
func (t *TelegramNotifier) Head(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("offset", "-1")
	q.Set("timeout", "0")

	updates, err := t.getUpdates(ctx, q)
	if err != nil {
		return 0, err
	}
	var head int64
	for _, u := range updates {
		if u.UpdateID > head {
			head = u.UpdateID
		}
	}
	return head, nil
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, q url.Values) ([]telegramUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	var updates []telegramUpdate
	if err := t.do(req, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}
