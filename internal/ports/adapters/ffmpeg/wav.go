package ffmpeg

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

func (i WAVInfo) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d bit, %s", i.SampleRate, i.Channels, i.BitDepth, i.Duration)
}

// InspectWAV reads the header and data chunk size of a PCM WAV file.
func InspectWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("read wav %s: %w", path, err)
	}
	if err := dec.Err(); err != nil {
		return WAVInfo{}, fmt.Errorf("read wav %s: %w", path, err)
	}
	if dec.NumChans == 0 || dec.BitDepth == 0 || dec.SampleRate == 0 {
		return WAVInfo{}, fmt.Errorf("read wav %s: missing fmt chunk", path)
	}

	info := WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	frameBytes := int64(info.Channels) * int64(info.BitDepth/8)
	if frameBytes > 0 {
		frames := dec.PCMLen() / frameBytes
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}
