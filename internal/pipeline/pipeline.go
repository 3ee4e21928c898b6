package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/ports"
	"github.com/forPelevin/revoice/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/revoice/internal/ports/adapters/openaicompat"
	"github.com/forPelevin/revoice/internal/ports/adapters/yandex"
	"github.com/forPelevin/revoice/internal/types"
	"github.com/forPelevin/revoice/internal/usecase"
)

const (
	TranslatorYandex = "yandex"
	TranslatorOpenAI = "openai"

	MinSpeed = 0.8
	MaxSpeed = 1.3
)

type Config struct {
	Inputs []string
	OutDir string
	// WorkDir holds per-item working sets; empty means os.TempDir().
	WorkDir string

	SourceLang  lang.Tag
	Speed       float64
	MaxDuration time.Duration
	VerifyVideo bool

	FFmpegPath  string
	FFprobePath string

	APIKey         string
	FolderID       string
	STTURL         string
	LLMURL         string
	TTSURL         string
	AllowedHosts   []string
	Retries        int
	RetryDelay     time.Duration
	RequestTimeout time.Duration

	Translator    string
	OpenAIBaseURL string
	OpenAIModel   string

	Log *zap.SugaredLogger
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: YANDEX_API_KEY is required (set it in .env)", types.ErrConfigurationMissing)
	}
	if strings.TrimSpace(c.FolderID) == "" {
		return fmt.Errorf("%w: YANDEX_FOLDER_ID is required (env or folder_id in config file)", types.ErrConfigurationMissing)
	}
	if len(c.Inputs) == 0 {
		return fmt.Errorf("%w: at least one input is required", types.ErrConfigurationMissing)
	}
	for _, in := range c.Inputs {
		st, err := os.Stat(in)
		if err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if st.IsDir() {
			return fmt.Errorf("input %s is a directory", in)
		}
		if ext := strings.ToLower(filepath.Ext(in)); ext != ".mp4" && ext != ".mov" {
			return fmt.Errorf("input %s: unsupported container %q (want .mp4 or .mov)", in, ext)
		}
	}
	if !c.SourceLang.Valid() {
		return fmt.Errorf("source language %q is not supported (want one of %s)", c.SourceLang, strings.Join(lang.Names(), ", "))
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("speed must be within [%.1f, %.1f], got %g", MinSpeed, MaxSpeed, c.Speed)
	}
	if c.MaxDuration <= 0 {
		return errors.New("max duration must be > 0")
	}
	if c.Retries < 1 {
		return errors.New("retries must be >= 1")
	}
	if c.RetryDelay < 0 {
		return errors.New("retry delay must be >= 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	switch c.Translator {
	case TranslatorYandex, TranslatorOpenAI:
	default:
		return fmt.Errorf("translator must be %q or %q, got %q", TranslatorYandex, TranslatorOpenAI, c.Translator)
	}

	urls := []struct{ name, value string }{
		{"YANDEX_STT_URL", c.STTURL},
		{"YANDEX_LLM_URL", c.LLMURL},
		{"YANDEX_TTS_URL", c.TTSURL},
	}
	if c.Translator == TranslatorOpenAI {
		urls = append(urls, struct{ name, value string }{"OPENAI_BASE_URL", c.OpenAIBaseURL})
	}
	for _, u := range urls {
		if err := yandex.ValidateBaseURL(u.name, u.value, c.AllowedHosts); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes a finished batch.
type Summary struct {
	RunID    string
	Dir      string
	Manifest types.Manifest

	Done, Skipped, Failed int
}

// Run processes every input and writes outputs plus manifest.json into a fresh run directory.
// It returns an error when at least one item failed; skipped items are not errors.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	runID := uuid.NewString()
	log = log.With("run", runID[:8])

	items := make([]types.InputItem, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return Summary{}, fmt.Errorf("read input: %w", err)
		}
		items = append(items, types.InputItem{Name: filepath.Base(in), Data: data, SourceLang: cfg.SourceLang})
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, runID, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Summary{}, err
	}
	log.Infow("output run dir", "dir", runOutDir, "items", len(items))

	uc := usecase.New(usecase.Deps{
		Media:  ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath),
		Speech: newSpeech(cfg, log),
		Log:    log,
	})
	res := uc.Run(ctx, usecase.Input{
		Items:       items,
		Speed:       cfg.Speed,
		MaxDuration: cfg.MaxDuration,
		WorkDir:     cfg.WorkDir,
		VerifyVideo: cfg.VerifyVideo,
	})

	sum := Summary{
		RunID: runID,
		Dir:   runOutDir,
		Manifest: types.Manifest{
			RunID:      runID,
			SourceLang: cfg.SourceLang.String(),
			TargetLang: cfg.SourceLang.Target().String(),
		},
	}
	var itemErrs []error
	used := map[string]bool{}
	for _, rep := range res.Reports {
		mi := types.ManifestItem{
			Input:       rep.Name,
			Outcome:     rep.Outcome,
			Stage:       rep.Stage,
			DurationSec: rep.Duration.Seconds(),
			Transcript:  rep.Transcript,
			Translation: rep.Translation,
		}
		if rep.Err != nil {
			mi.Error = rep.Err.Error()
		}
		if rep.Output != nil {
			name := uniqueName(rep.Output.Name, used)
			if err := os.WriteFile(filepath.Join(runOutDir, name), rep.Output.Data, 0o644); err != nil {
				rep.Outcome = types.OutcomeFailed
				rep.Err = fmt.Errorf("%s: %w", types.StageCollect, err)
				mi.Outcome, mi.Stage, mi.Error = rep.Outcome, types.StageCollect, rep.Err.Error()
			} else {
				mi.File = name
			}
		}
		if rep.Outcome == types.OutcomeFailed {
			itemErrs = append(itemErrs, fmt.Errorf("%s: %w", rep.Name, rep.Err))
		}
		sum.Manifest.Items = append(sum.Manifest.Items, mi)
	}

	countOf := func(o types.Outcome) int {
		return lo.CountBy(sum.Manifest.Items, func(mi types.ManifestItem) bool { return mi.Outcome == o })
	}
	sum.Done, sum.Skipped, sum.Failed = countOf(types.OutcomeDone), countOf(types.OutcomeSkipped), countOf(types.OutcomeFailed)

	b, err := json.MarshalIndent(sum.Manifest, "", "  ")
	if err != nil {
		return sum, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return sum, err
	}
	log.Infow("batch finished", "done", sum.Done, "skipped", sum.Skipped, "failed", sum.Failed, "manifest", manifestPath)

	if len(itemErrs) > 0 {
		return sum, fmt.Errorf("%d of %d items failed: %w", len(itemErrs), len(res.Reports), errors.Join(itemErrs...))
	}
	return sum, nil
}

func newSpeech(cfg Config, log *zap.SugaredLogger) ports.SpeechService {
	yc := yandex.New(yandex.Options{
		APIKey:         cfg.APIKey,
		FolderID:       cfg.FolderID,
		STTURL:         cfg.STTURL,
		LLMURL:         cfg.LLMURL,
		TTSURL:         cfg.TTSURL,
		RequestTimeout: cfg.RequestTimeout,
		Retries:        cfg.Retries,
		RetryDelay:     cfg.RetryDelay,
		Log:            log,
	})
	var tr ports.Translator = yc
	if cfg.Translator == TranslatorOpenAI {
		tr = openaicompat.New(openaicompat.Options{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			Project:        cfg.FolderID,
			RequestTimeout: cfg.RequestTimeout,
		})
	}
	return ports.Speech{Recognizer: yc, Translator: tr, Synthesizer: yc}
}

func buildRunOutDir(outRoot, runID string, now time.Time) string {
	ts := now.UTC().Format("20060102-150405Z")
	suffix := strings.ReplaceAll(runID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return filepath.Join(outRoot, fmt.Sprintf("revoice-%s-%s", ts, suffix))
}

// uniqueName keeps outputs from inputs with equal stems apart: clip_English.mp4, clip_English-2.mp4.
func uniqueName(name string, used map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	out := name
	for i := 2; used[out]; i++ {
		out = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	used[out] = true
	return out
}

// ensure adapters implement ports
var _ ports.MediaTool = (*ffmpeg.Adapter)(nil)
var _ ports.SpeechService = (*yandex.Adapter)(nil)
var _ ports.Translator = (*openaicompat.Adapter)(nil)
