package types

import (
	"time"

	"github.com/forPelevin/revoice/internal/domain/lang"
)

// InputItem is one uploaded clip.
type InputItem struct {
	Name       string
	Data       []byte
	SourceLang lang.Tag
}

// OutputItem is the remuxed container for one InputItem.
type OutputItem struct {
	Name       string
	Data       []byte
	TargetLang lang.Tag
}

type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Stage names used in reports and logs.
const (
	StagePrepare    = "prepare"
	StageProbe      = "probe"
	StageExtract    = "extract"
	StageRecognize  = "recognize"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageNormalize  = "normalize"
	StageRemux      = "remux"
	StageVerify     = "verify"
	StageCollect    = "collect"
)

type ItemReport struct {
	Name    string
	Outcome Outcome
	// Stage is the last stage entered; for skips and failures it names the gate or the failing step.
	Stage string
	Err   error

	Duration    time.Duration
	Transcript  string
	Translation string
	Output      *OutputItem
}

type Manifest struct {
	RunID      string         `json:"run_id"`
	SourceLang string         `json:"source_lang"`
	TargetLang string         `json:"target_lang"`
	Items      []ManifestItem `json:"items"`
}

type ManifestItem struct {
	Input       string  `json:"input"`
	Outcome     Outcome `json:"outcome"`
	Stage       string  `json:"stage,omitempty"`
	Error       string  `json:"error,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
	Translation string  `json:"translation,omitempty"`
	File        string  `json:"file,omitempty"`
}
