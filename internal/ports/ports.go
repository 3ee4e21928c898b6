package ports

import (
	"context"
	"time"

	"github.com/forPelevin/revoice/internal/domain/lang"
)

type MediaTool interface {
	ProbeDuration(ctx context.Context, inPath string) (time.Duration, error)
	// ExtractPCM writes mono 16 kHz s16le raw samples.
	ExtractPCM(ctx context.Context, inPath, outPCM string) error
	// NormalizeAudio decodes compressed audio from memory into a mono 48 kHz s16le WAV.
	NormalizeAudio(ctx context.Context, audio []byte, outWAV string) error
	// Remux copies video stream 0 of videoPath and encodes audio stream 0 of audioPath.
	Remux(ctx context.Context, videoPath, audioPath, outPath string) error
	VideoChecksum(ctx context.Context, inPath string) (string, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, source lang.Tag) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text string, target lang.Tag) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, target lang.Tag, speed float64) ([]byte, error)
}

// SpeechService is the remote speech capability used by the pipeline.
type SpeechService interface {
	Recognizer
	Translator
	Synthesizer
}

// Speech assembles a SpeechService from independent backends.
type Speech struct {
	Recognizer
	Translator
	Synthesizer
}
