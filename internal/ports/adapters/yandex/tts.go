package yandex

import (
	"context"
	"net/url"
	"strconv"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/types"
)

const (
	ttsPath   = "/speech/v1/tts:synthesize"
	ttsFormat = "oggopus"
)

// Synthesize returns OggOpus speech for text in the target voice. Single attempt.
func (a *Adapter) Synthesize(ctx context.Context, text string, target lang.Tag, speed float64) ([]byte, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", target.String())
	form.Set("voice", target.Voice())
	form.Set("speed", strconv.FormatFloat(speed, 'f', 2, 64))
	form.Set("format", ttsFormat)
	form.Set("folderId", a.folder)

	resp, err := a.post(ctx, "tts", a.ttsURL+ttsPath, "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, types.Malformed("tts", resp.Status, "", "empty audio")
	}
	return resp.Body, nil
}
