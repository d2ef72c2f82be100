package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICover draws a cover illustration with the images API.
type OpenAICover struct {
	client openai.Client
	model  string
}

// NewOpenAICover creates a cover generator sharing the script model's key.
func NewOpenAICover(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAICover {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	if model == "" {
		model = "dall-e-3"
	}
	return &OpenAICover{client: openai.NewClient(clientOpts...), model: model}
}

// CoverPrompt describes the illustration for a headline.
func CoverPrompt(headline string) string {
	return fmt.Sprintf("A clean editorial illustration for an Indian stock market news video about: %q. "+
		"Wide 16:9 composition, no text, no logos.", headline)
}

// Generate writes a PNG cover for headline to outPath.
func (c *OpenAICover) Generate(ctx context.Context, headline, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         CoverPrompt(headline),
		Model:          openai.ImageModel(c.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1792x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return errors.New("image API returned no data")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}
	return nil
}
