package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forPelevin/revoice/internal/config"
	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/pipeline"
)

func run(cmd *cobra.Command, inputs []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := resolveConfig(cmd, inputs, os.Getenv)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Log = log.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := pipeline.Run(ctx, cfg)
	if sum.Dir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d done, %d skipped, %d failed\n", sum.Dir, sum.Done, sum.Skipped, sum.Failed)
	}
	return err
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.DisableStacktrace = true
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zc.Build()
}

// resolveConfig layers defaults, the YAML file, the environment and explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, inputs []string, getenv func(string) string) (pipeline.Config, error) {
	flags := cmd.Flags()

	file := config.Defaults()
	path, _ := flags.GetString("config")
	if path == "" {
		path = config.FindConfigFile(getenv("HOME"))
	}
	if path != "" {
		var err error
		if file, err = config.Load(path); err != nil {
			return pipeline.Config{}, err
		}
	}

	setEnv := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setEnv(&file.FolderID, "YANDEX_FOLDER_ID")
	setEnv(&file.FFmpegPath, "FFMPEG_PATH")
	setEnv(&file.FFprobePath, "FFPROBE_PATH")

	if flags.Changed("source") {
		file.SourceLang, _ = flags.GetString("source")
	}
	if flags.Changed("speed") {
		file.Speed, _ = flags.GetFloat64("speed")
	}
	if flags.Changed("out") {
		file.OutDir, _ = flags.GetString("out")
	}
	if flags.Changed("verify-video") {
		file.VerifyVideo, _ = flags.GetBool("verify-video")
	}
	if flags.Changed("translator") {
		file.Translator, _ = flags.GetString("translator")
	}
	if flags.Changed("max-duration") {
		sec, _ := flags.GetInt("max-duration")
		file.MaxDuration = time.Duration(sec) * time.Second
	}
	if flags.Changed("retries") {
		file.Retries, _ = flags.GetInt("retries")
	}

	src, err := lang.Parse(file.SourceLang)
	if err != nil {
		return pipeline.Config{}, err
	}

	absInputs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return pipeline.Config{}, err
		}
		absInputs = append(absInputs, abs)
	}

	return pipeline.Config{
		Inputs:      absInputs,
		OutDir:      file.OutDir,
		WorkDir:     file.WorkDir,
		SourceLang:  src,
		Speed:       file.Speed,
		MaxDuration: file.MaxDuration,
		VerifyVideo: file.VerifyVideo,

		FFmpegPath:  file.FFmpegPath,
		FFprobePath: file.FFprobePath,

		APIKey:         getenv("YANDEX_API_KEY"),
		FolderID:       file.FolderID,
		STTURL:         getenv("YANDEX_STT_URL"),
		LLMURL:         getenv("YANDEX_LLM_URL"),
		TTSURL:         getenv("YANDEX_TTS_URL"),
		AllowedHosts:   splitList(getenv("YANDEX_ALLOWED_HOSTS")),
		Retries:        file.Retries,
		RetryDelay:     file.RetryDelay,
		RequestTimeout: file.RequestTimeout,

		Translator:    file.Translator,
		OpenAIBaseURL: getenv("OPENAI_BASE_URL"),
		OpenAIModel:   getenv("OPENAI_MODEL"),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
