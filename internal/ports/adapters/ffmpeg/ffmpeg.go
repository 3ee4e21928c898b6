package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/revoice/internal/types"
)

const (
	pcmSampleRate = 16000
	wavSampleRate = 48000
	audioCodec    = "aac"
	audioBitrate  = "192k"

	maxToolOutput = 2000
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	runner  commandRunner
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	return newWithRunner(ffmpegPath, ffprobePath, execRunner{})
}

func newWithRunner(ffmpegPath, ffprobePath string, r commandRunner) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, runner: r}
}

func (a *Adapter) ProbeDuration(ctx context.Context, inPath string) (time.Duration, error) {
	res, err := a.run(ctx, a.ffprobe, "duration", nil,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inPath,
	)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(res.Stdout)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func (a *Adapter) ExtractPCM(ctx context.Context, inPath, outPCM string) error {
	_, err := a.run(ctx, a.ffmpeg, "extract audio", nil,
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(pcmSampleRate),
		"-f", "s16le",
		outPCM,
	)
	return err
}

func (a *Adapter) NormalizeAudio(ctx context.Context, audio []byte, outWAV string) error {
	if len(audio) == 0 {
		return fmt.Errorf("normalize audio: empty input")
	}
	_, err := a.run(ctx, a.ffmpeg, "normalize audio", audio,
		"-y",
		"-i", "pipe:0",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(wavSampleRate),
		"-ac", "1",
		outWAV,
	)
	if err != nil {
		return err
	}

	info, err := InspectWAV(outWAV)
	if err != nil {
		return fmt.Errorf("normalize audio: %w", err)
	}
	if info.SampleRate != wavSampleRate || info.Channels != 1 || info.BitDepth != 16 {
		return fmt.Errorf("normalize audio: unexpected format %s", info)
	}
	return nil
}

func (a *Adapter) Remux(ctx context.Context, videoPath, audioPath, outPath string) error {
	_, err := a.run(ctx, a.ffmpeg, "remux", nil,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		outPath,
	)
	return err
}

// VideoChecksum hashes the packets of video stream 0 without decoding them.
func (a *Adapter) VideoChecksum(ctx context.Context, inPath string) (string, error) {
	res, err := a.run(ctx, a.ffmpeg, "video checksum", nil,
		"-v", "error",
		"-i", inPath,
		"-map", "0:v:0",
		"-c", "copy",
		"-f", "streamhash",
		"-hash", "sha256",
		"-",
	)
	if err != nil {
		return "", err
	}
	return parseStreamHash(res.Stdout)
}

// parseStreamHash reads "0,v,SHA256=<hex>" lines.
func parseStreamHash(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) != 3 || parts[1] != "v" {
			continue
		}
		if i := strings.IndexByte(parts[2], '='); i >= 0 && i+1 < len(parts[2]) {
			return parts[2][i+1:], nil
		}
	}
	return "", fmt.Errorf("no video stream hash in %q", truncate(out, 200))
}

func (a *Adapter) run(ctx context.Context, tool, op string, stdin []byte, args ...string) (commandResult, error) {
	res, err := a.runner.Run(ctx, stdin, tool, args...)
	if err != nil {
		return res, &types.ToolError{
			Tool:     filepath.Base(tool),
			Op:       op,
			ExitCode: res.ExitCode,
			Output:   tail(strings.TrimSpace(res.Stderr+res.Stdout), maxToolOutput),
			Err:      err,
		}
	}
	return res, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
