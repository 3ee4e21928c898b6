package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/ports"
	"github.com/forPelevin/revoice/internal/types"
)

type Deps struct {
	Media  ports.MediaTool
	Speech ports.SpeechService
	Log    *zap.SugaredLogger

	// Working set lifecycle; default to os.MkdirTemp / os.RemoveAll.
	MkdirTemp func(dir, pattern string) (string, error)
	RemoveAll func(path string) error
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.MkdirTemp == nil {
		d.MkdirTemp = os.MkdirTemp
	}
	if d.RemoveAll == nil {
		d.RemoveAll = os.RemoveAll
	}
	return Usecase{d: d}
}

type Input struct {
	Items       []types.InputItem
	Speed       float64
	MaxDuration time.Duration
	// WorkDir is where per-item working sets are created; empty means os.TempDir().
	WorkDir     string
	VerifyVideo bool
}

type Result struct {
	Reports []types.ItemReport
}

// Run processes items one at a time. Item failures are recorded in the reports and
// never stop the batch; only ctx cancellation does.
func (u Usecase) Run(ctx context.Context, in Input) Result {
	res := Result{Reports: make([]types.ItemReport, 0, len(in.Items))}
	for i, item := range in.Items {
		if err := ctx.Err(); err != nil {
			res.Reports = append(res.Reports, types.ItemReport{
				Name:    item.Name,
				Outcome: types.OutcomeFailed,
				Stage:   types.StagePrepare,
				Err:     fmt.Errorf("%s: %w", types.StagePrepare, err),
			})
			continue
		}
		log := u.d.Log.With("item", item.Name, "n", fmt.Sprintf("%d/%d", i+1, len(in.Items)))
		res.Reports = append(res.Reports, u.processItem(ctx, in, item, log))
	}
	return res
}

func (u Usecase) processItem(ctx context.Context, in Input, item types.InputItem, log *zap.SugaredLogger) types.ItemReport {
	rep := types.ItemReport{Name: item.Name}
	target := item.SourceLang.Target()

	enter := func(stage string) {
		rep.Stage = stage
		log.Debugw("stage", "stage", stage)
	}
	stop := func(err error) types.ItemReport {
		rep.Err = fmt.Errorf("%s: %w", rep.Stage, err)
		if types.IsGate(err) {
			rep.Outcome = types.OutcomeSkipped
			log.Warnw("item skipped", "stage", rep.Stage, "reason", err)
		} else {
			rep.Outcome = types.OutcomeFailed
			log.Errorw("item failed", "stage", rep.Stage, "error", err)
		}
		return rep
	}

	enter(types.StagePrepare)
	dir, err := u.d.MkdirTemp(in.WorkDir, "vtr_*")
	if err != nil {
		return stop(err)
	}
	defer func() {
		if err := u.d.RemoveAll(dir); err != nil {
			log.Warnw("working set cleanup failed", "dir", dir, "error", err)
		}
	}()

	inPath := filepath.Join(dir, "in"+containerExt(item.Name))
	pcmPath := filepath.Join(dir, "in.pcm")
	wavPath := filepath.Join(dir, "out.wav")
	outPath := filepath.Join(dir, "out_"+target.DisplayName()+".mp4")

	if err := os.WriteFile(inPath, item.Data, 0o600); err != nil {
		return stop(err)
	}

	enter(types.StageProbe)
	dur, err := u.d.Media.ProbeDuration(ctx, inPath)
	if err != nil {
		return stop(err)
	}
	rep.Duration = dur
	if dur > in.MaxDuration {
		return stop(fmt.Errorf("%w: %.1fs > %.1fs", types.ErrDurationExceeded, dur.Seconds(), in.MaxDuration.Seconds()))
	}

	enter(types.StageExtract)
	if err := u.d.Media.ExtractPCM(ctx, inPath, pcmPath); err != nil {
		return stop(err)
	}
	pcm, err := os.ReadFile(pcmPath)
	if err != nil {
		return stop(err)
	}

	enter(types.StageRecognize)
	transcript, err := u.d.Speech.Recognize(ctx, pcm, item.SourceLang)
	if err != nil {
		return stop(err)
	}
	rep.Transcript = transcript
	log.Infow("recognized", "lang", item.SourceLang, "text", transcript)
	if strings.TrimSpace(transcript) == "" {
		return stop(types.ErrEmptyTranscript)
	}

	enter(types.StageTranslate)
	translation, err := u.d.Speech.Translate(ctx, transcript, target)
	if err != nil {
		return stop(err)
	}
	rep.Translation = translation
	log.Infow("translated", "lang", target, "text", translation)

	enter(types.StageSynthesize)
	speech, err := u.d.Speech.Synthesize(ctx, translation, target, in.Speed)
	if err != nil {
		return stop(err)
	}

	enter(types.StageNormalize)
	if err := u.d.Media.NormalizeAudio(ctx, speech, wavPath); err != nil {
		return stop(err)
	}

	enter(types.StageRemux)
	if err := u.d.Media.Remux(ctx, inPath, wavPath, outPath); err != nil {
		return stop(err)
	}

	if in.VerifyVideo {
		enter(types.StageVerify)
		if err := u.verifyVideo(ctx, inPath, outPath); err != nil {
			return stop(err)
		}
	}

	enter(types.StageCollect)
	data, err := os.ReadFile(outPath)
	if err != nil {
		return stop(err)
	}
	rep.Output = &types.OutputItem{
		Name:       OutputName(item.Name, target),
		Data:       data,
		TargetLang: target,
	}
	rep.Outcome = types.OutcomeDone
	log.Infow("item done", "output", rep.Output.Name, "bytes", len(data), "duration", dur)
	return rep
}

func (u Usecase) verifyVideo(ctx context.Context, inPath, outPath string) error {
	before, err := u.d.Media.VideoChecksum(ctx, inPath)
	if err != nil {
		return err
	}
	after, err := u.d.Media.VideoChecksum(ctx, outPath)
	if err != nil {
		return err
	}
	if before != after {
		return fmt.Errorf("%w: %s != %s", types.ErrVideoAltered, before, after)
	}
	return nil
}

// OutputName is "<input stem>_<target language>.mp4".
func OutputName(inputName string, target lang.Tag) string {
	base := filepath.Base(strings.ReplaceAll(inputName, "\\", "/"))
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || stem == "." || stem == "/" {
		stem = "video"
	}
	return stem + "_" + target.DisplayName() + ".mp4"
}

func containerExt(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp4", ".mov":
		return ext
	default:
		return ".mp4"
	}
}
