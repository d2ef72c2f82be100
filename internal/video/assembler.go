// Package video assembles slide images and narration into an mp4 with
// ffmpeg.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultWeights sets how long each slide stays on screen relative to the
// others, keyed by file stem. Unknown slides get weight 3.
var DefaultWeights = map[string]float64{
	"cover":   2,
	"date":    2,
	"summary": 5,
	"news":    3,
}

// Assembler drives ffprobe and ffmpeg.
type Assembler struct {
	FFmpegPath  string
	FFprobePath string
	Width       int
	Height      int
	Weights     map[string]float64

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewAssembler creates an Assembler producing width x height video.
func NewAssembler(ffmpegPath, ffprobePath string, width, height int) *Assembler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	return &Assembler{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Width:       width,
		Height:      height,
		Weights:     DefaultWeights,
		run:         runCommand,
	}
}

// Frame is one slide and how long it is shown.
type Frame struct {
	Path     string
	Duration float64
}

// Assemble times frames to the audio duration and encodes outPath.
func (a *Assembler) Assemble(ctx context.Context, frames []string, audioPath, outPath string) error {
	if len(frames) == 0 {
		return errors.New("no frames to assemble")
	}
	for _, f := range frames {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("missing frame: %w", err)
		}
	}
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("missing audio: %w", err)
	}

	total, err := a.Duration(ctx, audioPath)
	if err != nil {
		return err
	}
	timed := Schedule(frames, total, a.Weights)

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(timed)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		a.Width, a.Height, a.Width, a.Height)
	args := []string{"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outPath,
	}
	if out, err := a.run(ctx, a.FFmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(out, 500))
	}
	log.Printf("[INFO] [video] final video saved to %s (%.1fs, %d frames)", outPath, total, len(frames))
	return nil
}

// Duration returns the media duration in seconds as reported by ffprobe.
func (a *Assembler) Duration(ctx context.Context, path string) (float64, error) {
	out, err := a.run(ctx, a.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, tail(out, 300))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("audio has no duration")
	}
	return d, nil
}

// Schedule splits total seconds across frames by weight.
func Schedule(frames []string, total float64, weights map[string]float64) []Frame {
	ws := make([]float64, len(frames))
	var sum float64
	for i, f := range frames {
		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		w, ok := weights[stem]
		if !ok || w <= 0 {
			w = 3
		}
		ws[i] = w
		sum += w
	}
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = Frame{Path: f, Duration: total * ws[i] / sum}
	}
	return out
}

// ConcatList renders an ffmpeg concat demuxer script. The last frame is
// listed twice so its duration is honored.
func ConcatList(frames []Frame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(fmt.Sprintf("file '%s'\n", quotePath(f.Path)))
		b.WriteString(fmt.Sprintf("duration %.3f\n", f.Duration))
	}
	if len(frames) > 0 {
		b.WriteString(fmt.Sprintf("file '%s'\n", quotePath(frames[len(frames)-1].Path)))
	}
	return b.String()
}

func quotePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return strings.ReplaceAll(p, "'", `'\''`)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return stderr.Bytes(), err
	}
	return out, nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
