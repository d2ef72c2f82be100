// Package speech synthesizes narration audio with Amazon Polly.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// maxChunkRunes stays under Polly's per-request text limit.
const maxChunkRunes = 2900

// neuralVoices can use the neural engine.
var neuralVoices = map[string]bool{
	"Raveena": true,
	"Kajal":   true,
	"Karan":   true,
	"Neerja":  true,
}

// Engine picks the Polly engine for voiceID.
func Engine(voiceID string) types.Engine {
	if neuralVoices[voiceID] {
		return types.EngineNeural
	}
	return types.EngineStandard
}

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Synthesizer writes mp3 narration.
type Synthesizer struct {
	api     pollyAPI
	voiceID string
}

// NewSynthesizer loads AWS credentials from the default chain.
func NewSynthesizer(ctx context.Context, region, voiceID string) (*Synthesizer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Synthesizer{api: polly.NewFromConfig(cfg), voiceID: voiceID}, nil
}

// Synthesize writes text as mp3 to outPath. Long text is sent in several
// requests and the mp3 streams are concatenated.
func (s *Synthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("nothing to synthesize")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	tmp := outPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	engine := Engine(s.voiceID)
	chunks := SplitText(text, maxChunkRunes)
	for i, chunk := range chunks {
		if err := s.synthesizeChunk(ctx, chunk, engine, f); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close audio file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return fmt.Errorf("rename audio file: %w", err)
	}
	log.Printf("[INFO] [speech] audio saved to %s using %s (%s)", outPath, s.voiceID, engine)
	return nil
}

func (s *Synthesizer) synthesizeChunk(ctx context.Context, chunk string, engine types.Engine, w io.Writer) error {
	out, err := s.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(chunk),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(s.voiceID),
		Engine:       engine,
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	defer out.AudioStream.Close()
	if _, err := io.Copy(w, out.AudioStream); err != nil {
		return fmt.Errorf("read audio stream: %w", err)
	}
	return nil
}

// SplitText cuts text into pieces of at most limit runes, breaking after
// sentence ends or spaces where possible.
func SplitText(text string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(text) > limit {
		r := []rune(text)
		cut := lastBreak(r[:limit])
		out = append(out, strings.TrimSpace(string(r[:cut])))
		text = strings.TrimSpace(string(r[cut:]))
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func lastBreak(r []rune) int {
	space := -1
	for i := len(r) - 1; i > 0; i-- {
		switch r[i] {
		case '.', '!', '?', '\n', '।':
			return i + 1
		case ' ':
			if space < 0 {
				space = i + 1
			}
		}
	}
	if space > 0 {
		return space
	}
	return len(r)
}
