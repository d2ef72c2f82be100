package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestSchedule(t *testing.T) {
	frames := Schedule([]string{"out/date.png", "out/summary.png", "out/news.png"}, 20, DefaultWeights)
	require.InDelta(t, 4.0, frames[0].Duration, 1e-9)
	require.InDelta(t, 10.0, frames[1].Duration, 1e-9)
	require.InDelta(t, 6.0, frames[2].Duration, 1e-9)

	frames = Schedule([]string{"a.png", "b.png"}, 9, nil)
	require.InDelta(t, 4.5, frames[0].Duration, 1e-9)
}

func TestConcatList_RepeatsLastFrame(t *testing.T) {
	list := ConcatList([]Frame{{Path: "/w/date.png", Duration: 2}, {Path: "/w/it's.png", Duration: 5.5}})
	require.Equal(t, "file '/w/date.png'\nduration 2.000\n"+
		"file '/w/it'\\''s.png'\nduration 5.500\n"+
		"file '/w/it'\\''s.png'\n", list)
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	frames := []string{touch(t, filepath.Join(dir, "date.png")), touch(t, filepath.Join(dir, "news.png"))}
	audio := touch(t, filepath.Join(dir, "audio.mp3"))
	out := filepath.Join(dir, "final_video.mp4")

	var calls []call
	a := NewAssembler("", "", 1280, 720)
	a.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		if name == "ffprobe" {
			return []byte("10.000000\n"), nil
		}
		return nil, nil
	}

	require.NoError(t, a.Assemble(context.Background(), frames, audio, out))
	require.Len(t, calls, 2)
	require.Equal(t, audio, calls[0].args[len(calls[0].args)-1])

	ff := strings.Join(calls[1].args, " ")
	require.Equal(t, "ffmpeg", calls[1].name)
	require.Contains(t, ff, "-f concat -safe 0 -i "+filepath.Join(dir, "concat.txt"))
	require.Contains(t, ff, "-c:v libx264 -pix_fmt yuv420p -c:a aac -shortest "+out)

	list, err := os.ReadFile(filepath.Join(dir, "concat.txt"))
	require.NoError(t, err)
	require.Contains(t, string(list), "duration 4.000\n")
	require.Contains(t, string(list), "duration 6.000\n")
}

func TestAssemble_Errors(t *testing.T) {
	dir := t.TempDir()
	frame := touch(t, filepath.Join(dir, "date.png"))
	audio := touch(t, filepath.Join(dir, "audio.mp3"))
	out := filepath.Join(dir, "v.mp4")

	a := NewAssembler("", "", 0, 0)
	a.run = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "ffprobe" {
			return []byte("N/A"), nil
		}
		return nil, nil
	}
	require.Error(t, a.Assemble(context.Background(), nil, audio, out))
	require.ErrorContains(t, a.Assemble(context.Background(), []string{frame}, filepath.Join(dir, "none.mp3"), out), "missing audio")
	require.ErrorContains(t, a.Assemble(context.Background(), []string{frame}, audio, out), "parse duration")

	a.run = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if name == "ffprobe" {
			return []byte("3.2"), nil
		}
		return []byte("Unknown encoder 'libx264'"), errors.New("exit status 1")
	}
	require.ErrorContains(t, a.Assemble(context.Background(), []string{frame}, audio, out), "Unknown encoder")
}
