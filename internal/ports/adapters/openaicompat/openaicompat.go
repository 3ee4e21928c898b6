// Package openaicompat translates through any OpenAI-compatible chat completions endpoint,
// including Yandex Cloud's https://llm.api.cloud.yandex.net/v1.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/types"
)

const (
	DefaultBaseURL = "https://llm.api.cloud.yandex.net/v1"

	defaultRequestTimeout = 30 * time.Second
	temperature           = 0.2
	maxTokens             = 2048
)

type Options struct {
	APIKey string
	// BaseURL of the API root (the part before /chat/completions).
	BaseURL string
	// Model defaults to gpt://<Project>/yandexgpt/latest.
	Model string
	// Project is sent as OpenAI-Project; Yandex expects the folder id here.
	Project        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Adapter struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func New(o Options) *Adapter {
	baseURL := strings.TrimSpace(o.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if o.Project != "" {
		opts = append(opts, option.WithHeader("OpenAI-Project", o.Project))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}

	model := strings.TrimSpace(o.Model)
	if model == "" {
		model = "gpt://" + o.Project + "/yandexgpt/latest"
	}
	timeout := o.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Adapter{client: openai.NewClient(opts...), model: model, timeout: timeout}
}

// Translate is a single attempt; SDK retries are disabled.
func (a *Adapter) Translate(ctx context.Context, text string, target lang.Tag) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(target.TranslationPrompt()),
			openai.UserMessage(text),
		},
		Model:       a.model,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &types.ServiceError{Service: "llm", Status: apiErr.StatusCode, Body: apiErr.Message}
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timeout after %s: %w", a.timeout, context.DeadlineExceeded)
		}
		return "", &types.ServiceError{Service: "llm", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", types.Malformed("llm", http.StatusOK, "", "no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
