package yandex

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/retry"
	"github.com/forPelevin/revoice/internal/types"
)

const (
	sttPath       = "/speech/v1/stt:recognize"
	sttSampleRate = 16000
	sttFormat     = "lpcm"
)

// Recognize sends raw mono 16 kHz s16le PCM and returns the transcript.
// A response without "result" means no speech and yields "".
// Transient failures are retried; only the last one is returned.
func (a *Adapter) Recognize(ctx context.Context, pcm []byte, source lang.Tag) (string, error) {
	q := url.Values{}
	q.Set("folderId", a.folder)
	q.Set("lang", source.String())
	q.Set("format", sttFormat)
	q.Set("sampleRateHertz", strconv.Itoa(sttSampleRate))
	endpoint := a.sttURL + sttPath + "?" + q.Encode()

	policy := retry.Policy{
		Attempts:  a.retries,
		Delay:     a.retryDelay,
		Retryable: types.IsTransient,
		OnRetry: func(attempt int, err error) {
			a.log.Debugw("stt attempt failed, retrying", "attempt", attempt, "of", a.retries, "error", err)
		},
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		resp, err := a.post(ctx, "stt", endpoint, "application/octet-stream", pcm)
		if err != nil {
			return "", err
		}
		if !gjson.ValidBytes(resp.Body) {
			return "", types.Malformed("stt", resp.Status, truncate(string(resp.Body), maxErrorBody), "response is not JSON")
		}
		return gjson.GetBytes(resp.Body, "result").String(), nil
	})
}
