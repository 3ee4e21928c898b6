package yandex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/revoice/internal/types"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetries        = 3
	defaultRetryDelay     = time.Second

	maxResponseBytes = 32 << 20
	maxErrorBody     = 400
)

type Options struct {
	APIKey   string
	FolderID string

	// Base URLs; empty means the public Yandex Cloud endpoint.
	STTURL string
	LLMURL string
	TTSURL string

	RequestTimeout time.Duration
	// Retries is the total number of recognition attempts.
	Retries    int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

// Adapter talks to Yandex SpeechKit (STT, TTS) and the Foundation Models completion API.
type Adapter struct {
	key    string
	folder string

	sttURL string
	llmURL string
	ttsURL string

	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	client *http.Client
	log    *zap.SugaredLogger
}

func New(o Options) *Adapter {
	a := &Adapter{
		key:        o.APIKey,
		folder:     o.FolderID,
		sttURL:     normalizeBaseURL(o.STTURL, DefaultSTTURL),
		llmURL:     normalizeBaseURL(o.LLMURL, DefaultLLMURL),
		ttsURL:     normalizeBaseURL(o.TTSURL, DefaultTTSURL),
		timeout:    o.RequestTimeout,
		retries:    o.Retries,
		retryDelay: o.RetryDelay,
		client:     o.HTTPClient,
		log:        o.Log,
	}
	if a.timeout <= 0 {
		a.timeout = defaultRequestTimeout
	}
	if a.retries <= 0 {
		a.retries = defaultRetries
	}
	if a.retryDelay < 0 {
		a.retryDelay = defaultRetryDelay
	}
	if a.client == nil {
		a.client = &http.Client{}
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}
	return a
}

type response struct {
	Status int
	Body   []byte
}

// post sends one request and returns the body of a 2xx response.
// Any other outcome is a *types.ServiceError.
func (a *Adapter) post(ctx context.Context, service, endpoint, contentType string, body []byte) (response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Authorization", "Api-Key "+a.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timeout after %s: %w", a.timeout, context.DeadlineExceeded)
		}
		return response{}, &types.ServiceError{Service: service, Err: redactErr(err, a.key)}
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, &types.ServiceError{Service: service, Err: fmt.Errorf("read %d response: %w", resp.StatusCode, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response{}, &types.ServiceError{
			Service: service,
			Status:  resp.StatusCode,
			Body:    truncate(redactSecrets(string(rb), a.key), maxErrorBody),
		}
	}
	return response{Status: resp.StatusCode, Body: rb}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	apiKeyHeaderRE = regexp.MustCompile(`(?i)\b(Api-Key|Bearer)\s+[A-Za-z0-9._~+/=-]+`)
	authHeaderRE   = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE  = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = apiKeyHeaderRE.ReplaceAllString(out, "${1} [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

// redactErr keeps the error chain but scrubs the key from transport messages (URLs can echo it).
func redactErr(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return &redactedError{msg: redactSecrets(err.Error(), apiKey), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
