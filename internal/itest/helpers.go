//go:build integration

package itest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate go.mod")
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()
	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

func runTool(t *testing.T, name string, args ...string) string {
	t.Helper()
	b, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		t.Fatalf("%s %s: %v\n%s", name, strings.Join(args, " "), err, string(b))
	}
	return string(b)
}

// makeClip renders an H.264 test pattern with an AAC track; a silent clip gets anullsrc instead of a tone.
func makeClip(t *testing.T, path string, seconds int, silent bool) {
	t.Helper()
	audio := fmt.Sprintf("sine=frequency=440:duration=%d", seconds)
	if silent {
		audio = fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%d", seconds)
	}
	runTool(t, "ffmpeg", "-y", "-v", "error",
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc=size=320x240:rate=25:duration=%d", seconds),
		"-f", "lavfi", "-i", audio,
		"-shortest",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		path,
	)
}

// speechFixture returns compressed audio standing in for a TTS answer: Ogg/Opus when libopus is available, WAV otherwise.
func speechFixture(t *testing.T) []byte {
	t.Helper()
	dir := t.TempDir()
	ogg := filepath.Join(dir, "speech.ogg")
	cmd := exec.Command("ffmpeg", "-y", "-v", "error", "-f", "lavfi", "-i", "sine=frequency=220:duration=2", "-c:a", "libopus", "-f", "ogg", ogg)
	if err := cmd.Run(); err != nil {
		wav := filepath.Join(dir, "speech.wav")
		runTool(t, "ffmpeg", "-y", "-v", "error", "-f", "lavfi", "-i", "sine=frequency=220:duration=2", wav)
		ogg = wav
	}
	b, err := os.ReadFile(ogg)
	if err != nil {
		t.Fatalf("read speech fixture: %v", err)
	}
	return b
}

func probeDurationSeconds(t *testing.T, path string) float64 {
	t.Helper()
	s := strings.TrimSpace(runTool(t, "ffprobe", "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse duration %q: %v", s, err)
	}
	return sec
}

func probeStream(t *testing.T, path, selector, entries string) string {
	t.Helper()
	return strings.TrimSpace(runTool(t, "ffprobe", "-v", "error",
		"-select_streams", selector,
		"-show_entries", "stream="+entries,
		"-of", "default=noprint_wrappers=1",
		path,
	))
}

func videoStreamHash(t *testing.T, path string) string {
	t.Helper()
	out := runTool(t, "ffmpeg", "-v", "error", "-i", path, "-map", "0:v:0", "-c", "copy", "-f", "streamhash", "-hash", "sha256", "-")
	return strings.TrimSpace(out)
}
