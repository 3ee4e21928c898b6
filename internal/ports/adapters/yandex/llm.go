package yandex

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/types"
)

const (
	llmPath        = "/foundationModels/v1/completion"
	llmModel       = "yandexgpt"
	llmTemperature = 0.2
	llmMaxTokens   = 2048
)

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Translate asks YandexGPT to translate text into target. Single attempt.
func (a *Adapter) Translate(ctx context.Context, text string, target lang.Tag) (string, error) {
	body, err := completionRequest(a.folder, text, target)
	if err != nil {
		return "", err
	}
	resp, err := a.post(ctx, "llm", a.llmURL+llmPath, "application/json", body)
	if err != nil {
		return "", err
	}
	return parseCompletion(resp)
}

func completionRequest(folder, text string, target lang.Tag) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, v)
		}
	}
	set("modelUri", "gpt://"+folder+"/"+llmModel)
	set("messages", []message{
		{Role: "system", Text: target.TranslationPrompt()},
		{Role: "user", Text: text},
	})
	set("completionOptions.temperature", llmTemperature)
	set("completionOptions.maxTokens", llmMaxTokens)
	return b, err
}

func parseCompletion(resp response) (string, error) {
	if !gjson.ValidBytes(resp.Body) {
		return "", types.Malformed("llm", resp.Status, truncate(string(resp.Body), maxErrorBody), "response is not JSON")
	}
	res := gjson.GetBytes(resp.Body, "result.alternatives.0.message.text")
	if !res.Exists() {
		return "", types.Malformed("llm", resp.Status, truncate(string(resp.Body), maxErrorBody), "no result.alternatives[0].message.text")
	}
	return strings.TrimSpace(res.String()), nil
}
