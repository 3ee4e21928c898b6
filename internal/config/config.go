// Package config reads the optional revoice YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File holds every setting that may come from YAML. Secrets are intentionally absent.
type File struct {
	FolderID       string        `yaml:"folder_id"`
	SourceLang     string        `yaml:"source_lang"`
	Speed          float64       `yaml:"speed"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	Retries        int           `yaml:"retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	OutDir         string        `yaml:"out"`
	WorkDir        string        `yaml:"work_dir"`
	VerifyVideo    bool          `yaml:"verify_video"`
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	FFprobePath    string        `yaml:"ffprobe_path"`
	Translator     string        `yaml:"translator"`
}

func Defaults() File {
	return File{
		SourceLang:     "ru-RU",
		Speed:          1.0,
		MaxDuration:    30 * time.Second,
		Retries:        3,
		RetryDelay:     time.Second,
		RequestTimeout: 30 * time.Second,
		OutDir:         "out",
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		Translator:     "yandex",
	}
}

// Load reads path over Defaults. Unknown keys are rejected.
func Load(path string) (File, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfigFile returns the first existing file among the standard locations, or "".
func FindConfigFile(home string) string {
	locations := []string{"./revoice.yaml", "./revoice.yml"}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".revoice", "config.yaml"),
			filepath.Join(home, ".revoice", "config.yml"),
		)
	}
	for _, p := range locations {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}
