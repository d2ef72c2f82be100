// Package script turns the market report into narration text with a chat
// completion model.
package script

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a helpful financial scriptwriter for YouTube Shorts, focused on Indian traders."

// Config selects the model endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Writer generates narration scripts.
type Writer struct {
	client openai.Client
	cfg    Config
}

// NewWriter builds a Writer. Extra options are appended to the client
// options, after the key and base URL.
func NewWriter(cfg Config, opts ...option.RequestOption) *Writer {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Writer{client: openai.NewClient(clientOpts...), cfg: cfg}
}

// Write returns the narration for reportText. An empty reply is an error.
func (w *Writer) Write(ctx context.Context, reportText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(reportText)),
		},
		Model: w.cfg.Model,
	}
	if w.cfg.Temperature > 0 {
		params.Temperature = openai.Float(w.cfg.Temperature)
	}

	resp, err := w.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("model returned an empty script")
	}
	log.Printf("[INFO] [script] generated %d chars with %s", len([]rune(text)), w.cfg.Model)
	return text, nil
}

// BuildPrompt wraps the report in the script instructions.
func BuildPrompt(reportText string) string {
	var b strings.Builder
	b.WriteString("You are a financial content creator writing for Indian retail traders. Based on the following pre-market report:\n\n")
	b.WriteString(`"""` + "\n")
	b.WriteString(strings.TrimSpace(reportText))
	b.WriteString("\n" + `"""` + "\n\n")
	b.WriteString(`Write a short, clear, human-sounding YouTube Shorts script that:
- Starts with the signature line: Good morning, traders. Let's gear up for the day under 5 minutes.
- Includes only relevant and helpful info for a trader about Indian market updates (NIFTY/SENSEX/BANK NIFTY if available).
- Picks out any news that could move the stock market even if it is not about a listed company.
- Sounds like a human is speaking, not robotic.
- Skips indices marked Unavailable.
- Avoids lists like "these 4 or 5 stocks are above or below this level".
- Avoids overloading with too many numbers.
- Uses simple, conversational Hinglish with words like up, down and percentage.

The tone should feel helpful and energetic, like helping a fellow trader prep for the day. Market terms stay in English, the rest is mostly Hinglish with a little English. Keep all numbers in English. Avoid difficult Hindi words and use the English word instead. No narrator notes, just the word-by-word script.

Respond with only the final script.
`)
	return b.String()
}
