package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/forPelevin/revoice/internal/domain/lang"
	"github.com/forPelevin/revoice/internal/types"
)

// Fixture items carry their identity in Data; fakes key their behavior on it.

type fakeMedia struct {
	durations map[string]time.Duration
	failOn    map[string]string // item data -> failing op
	checksum  func(path string) string

	calls map[string]int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{durations: map[string]time.Duration{}, failOn: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeMedia) fail(op string, id string) error {
	f.calls[op+":"+id]++
	f.calls[op]++
	if f.failOn[id] == op {
		return &types.ToolError{Tool: "ffmpeg", Op: op, ExitCode: 1, Err: errors.New("exit status 1")}
	}
	return nil
}

func readID(path string) string {
	b, _ := os.ReadFile(path)
	s := string(b)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (f *fakeMedia) ProbeDuration(_ context.Context, inPath string) (time.Duration, error) {
	id := readID(inPath)
	if err := f.fail("probe", id); err != nil {
		return 0, err
	}
	if d, ok := f.durations[id]; ok {
		return d, nil
	}
	return 10 * time.Second, nil
}

func (f *fakeMedia) ExtractPCM(_ context.Context, inPath, outPCM string) error {
	id := readID(inPath)
	if err := f.fail("extract", id); err != nil {
		return err
	}
	return os.WriteFile(outPCM, []byte("pcm:"+id), 0o600)
}

func (f *fakeMedia) NormalizeAudio(_ context.Context, audio []byte, outWAV string) error {
	id := string(audio)
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	if err := f.fail("normalize", id); err != nil {
		return err
	}
	return os.WriteFile(outWAV, []byte("wav:"+id), 0o600)
}

func (f *fakeMedia) Remux(_ context.Context, videoPath, audioPath, outPath string) error {
	id := readID(videoPath)
	if err := f.fail("remux", id); err != nil {
		return err
	}
	if readID(audioPath) != id {
		return errors.New("audio/video mismatch")
	}
	return os.WriteFile(outPath, []byte("mp4:"+id), 0o600)
}

func (f *fakeMedia) VideoChecksum(_ context.Context, inPath string) (string, error) {
	f.calls["checksum"]++
	if f.checksum != nil {
		return f.checksum(inPath), nil
	}
	return "sum-" + readID(inPath), nil
}

type fakeSpeech struct {
	transcripts map[string]string // item id -> transcript
	failOn      map[string]string // item id -> op

	calls     map[string]int
	lastLang  map[string]lang.Tag
	lastSpeed float64
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{
		transcripts: map[string]string{},
		failOn:      map[string]string{},
		calls:       map[string]int{},
		lastLang:    map[string]lang.Tag{},
	}
}

func (f *fakeSpeech) err(op, id string) error {
	f.calls[op]++
	f.calls[op+":"+id]++
	if f.failOn[id] == op {
		return &types.ServiceError{Service: op, Status: 500, Body: "boom"}
	}
	return nil
}

func (f *fakeSpeech) Recognize(_ context.Context, pcm []byte, source lang.Tag) (string, error) {
	id := strings.TrimPrefix(string(pcm), "pcm:")
	f.lastLang["recognize"] = source
	if err := f.err("recognize", id); err != nil {
		return "", err
	}
	if t, ok := f.transcripts[id]; ok {
		return t, nil
	}
	return "привет мир|" + id, nil
}

func (f *fakeSpeech) Translate(_ context.Context, text string, target lang.Tag) (string, error) {
	id := text[strings.LastIndexByte(text, '|')+1:]
	f.lastLang["translate"] = target
	if err := f.err("translate", id); err != nil {
		return "", err
	}
	return "hello world|" + id, nil
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string, target lang.Tag, speed float64) ([]byte, error) {
	id := text[strings.LastIndexByte(text, '|')+1:]
	f.lastLang["synthesize"] = target
	f.lastSpeed = speed
	if err := f.err("synthesize", id); err != nil {
		return nil, err
	}
	return []byte("ogg:" + id), nil
}

type workingSets struct {
	created map[string]int
	removed map[string]int
}

func trackWorkingSets(t *testing.T, d *Deps) *workingSets {
	t.Helper()
	ws := &workingSets{created: map[string]int{}, removed: map[string]int{}}
	d.MkdirTemp = func(dir, pattern string) (string, error) {
		p, err := os.MkdirTemp(dir, pattern)
		if err == nil {
			ws.created[p]++
		}
		return p, err
	}
	d.RemoveAll = func(path string) error {
		ws.removed[path]++
		return os.RemoveAll(path)
	}
	return ws
}

func (ws *workingSets) assertReclaimed(t *testing.T, want int) {
	t.Helper()
	if len(ws.created) != want {
		t.Fatalf("created %d working sets, want %d", len(ws.created), want)
	}
	for p := range ws.created {
		if ws.removed[p] != 1 {
			t.Fatalf("working set %s removed %d times, want 1", p, ws.removed[p])
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("working set %s still exists (err=%v)", p, err)
		}
	}
}

type harness struct {
	media  *fakeMedia
	speech *fakeSpeech
	ws     *workingSets
	uc     Usecase
	work   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{media: newFakeMedia(), speech: newFakeSpeech(), work: t.TempDir()}
	d := Deps{Media: h.media, Speech: h.speech, Log: zaptest.NewLogger(t).Sugar()}
	h.ws = trackWorkingSets(t, &d)
	h.uc = New(d)
	return h
}

func (h *harness) run(items ...types.InputItem) Result {
	return h.uc.Run(context.Background(), Input{
		Items:       items,
		Speed:       1.1,
		MaxDuration: 30 * time.Second,
		WorkDir:     h.work,
	})
}

func item(name, id string) types.InputItem {
	return types.InputItem{Name: name, Data: []byte("video:" + id), SourceLang: lang.Russian}
}

func TestRun_HappyPath(t *testing.T) {
	h := newHarness(t)

	res := h.run(item("clip.mp4", "a"))
	if len(res.Reports) != 1 {
		t.Fatalf("reports = %d", len(res.Reports))
	}
	r := res.Reports[0]
	if r.Outcome != types.OutcomeDone || r.Err != nil {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Output == nil || r.Output.Name != "clip_English.mp4" || string(r.Output.Data) != "mp4:a" {
		t.Fatalf("unexpected output: %+v", r.Output)
	}
	if r.Output.TargetLang != lang.English {
		t.Fatalf("target = %s", r.Output.TargetLang)
	}
	if r.Transcript != "привет мир|a" || r.Translation != "hello world|a" || r.Duration != 10*time.Second {
		t.Fatalf("unexpected report details: %+v", r)
	}
	if h.speech.lastLang["recognize"] != lang.Russian || h.speech.lastLang["translate"] != lang.English || h.speech.lastLang["synthesize"] != lang.English {
		t.Fatalf("languages not routed through the table: %v", h.speech.lastLang)
	}
	if h.speech.lastSpeed != 1.1 {
		t.Fatalf("speed = %v", h.speech.lastSpeed)
	}
	if h.media.calls["checksum"] != 0 {
		t.Fatalf("verification must be opt-in")
	}
	h.ws.assertReclaimed(t, 1)
}

func TestRun_EnglishSourceTargetsRussian(t *testing.T) {
	h := newHarness(t)
	it := item("talk.mov", "a")
	it.SourceLang = lang.English

	r := h.run(it).Reports[0]
	if r.Outcome != types.OutcomeDone || r.Output.Name != "talk_Русский.mp4" {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestRun_DurationGateSkipsAllFurtherStages(t *testing.T) {
	h := newHarness(t)
	h.media.durations["long"] = 45 * time.Second
	h.media.durations["edge"] = 30 * time.Second

	res := h.run(item("long.mp4", "long"), item("edge.mp4", "edge"), item("short.mp4", "short"))

	long := res.Reports[0]
	if long.Outcome != types.OutcomeSkipped || !errors.Is(long.Err, types.ErrDurationExceeded) || long.Stage != types.StageProbe {
		t.Fatalf("unexpected report for long item: %+v", long)
	}
	if long.Output != nil {
		t.Fatalf("skipped item must not produce output")
	}
	for _, op := range []string{"extract", "normalize", "remux"} {
		if h.media.calls[op+":long"] != 0 {
			t.Fatalf("%s called for gated item", op)
		}
	}
	for _, op := range []string{"recognize", "translate", "synthesize"} {
		if h.speech.calls[op+":long"] != 0 {
			t.Fatalf("%s called for gated item", op)
		}
	}
	if res.Reports[1].Outcome != types.OutcomeDone {
		t.Fatalf("duration equal to the threshold must pass: %+v", res.Reports[1])
	}
	if res.Reports[2].Outcome != types.OutcomeDone {
		t.Fatalf("batch must continue after gate: %+v", res.Reports[2])
	}
	h.ws.assertReclaimed(t, 3)
}

func TestRun_EmptyTranscriptGate(t *testing.T) {
	for _, transcript := range []string{"", "   \n\t"} {
		t.Run(strings.ReplaceAll(transcript, "\n", `\n`), func(t *testing.T) {
			h := newHarness(t)
			h.speech.transcripts["silent"] = transcript

			res := h.run(item("silent.mp4", "silent"), item("next.mp4", "next"))

			r := res.Reports[0]
			if r.Outcome != types.OutcomeSkipped || !errors.Is(r.Err, types.ErrEmptyTranscript) || r.Stage != types.StageRecognize {
				t.Fatalf("unexpected report: %+v", r)
			}
			for _, op := range []string{"translate", "synthesize"} {
				if h.speech.calls[op+":silent"] != 0 {
					t.Fatalf("%s called after empty transcript", op)
				}
			}
			if h.media.calls["normalize:silent"] != 0 || h.media.calls["remux:silent"] != 0 {
				t.Fatalf("media stages ran after empty transcript: %v", h.media.calls)
			}
			if res.Reports[1].Outcome != types.OutcomeDone {
				t.Fatalf("batch must continue: %+v", res.Reports[1])
			}
			h.ws.assertReclaimed(t, 2)
		})
	}
}

func TestRun_ItemFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		stage       string
		mediaFail   string
		speechFail  string
		wantToolErr bool
	}{
		{stage: types.StageProbe, mediaFail: "probe", wantToolErr: true},
		{stage: types.StageExtract, mediaFail: "extract", wantToolErr: true},
		{stage: types.StageRecognize, speechFail: "recognize"},
		{stage: types.StageTranslate, speechFail: "translate"},
		{stage: types.StageSynthesize, speechFail: "synthesize"},
		{stage: types.StageNormalize, mediaFail: "normalize", wantToolErr: true},
		{stage: types.StageRemux, mediaFail: "remux", wantToolErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			h := newHarness(t)
			if tt.mediaFail != "" {
				h.media.failOn["bad"] = tt.mediaFail
			}
			if tt.speechFail != "" {
				h.speech.failOn["bad"] = tt.speechFail
			}

			res := h.run(item("bad.mp4", "bad"), item("good.mp4", "good"))

			bad := res.Reports[0]
			if bad.Outcome != types.OutcomeFailed || bad.Stage != tt.stage || bad.Output != nil {
				t.Fatalf("unexpected report: %+v", bad)
			}
			if !strings.HasPrefix(bad.Err.Error(), tt.stage+": ") {
				t.Fatalf("error does not name the stage: %v", bad.Err)
			}
			var te *types.ToolError
			var se *types.ServiceError
			if tt.wantToolErr && !errors.As(bad.Err, &te) {
				t.Fatalf("expected ToolError, got %v", bad.Err)
			}
			if !tt.wantToolErr && !errors.As(bad.Err, &se) {
				t.Fatalf("expected ServiceError, got %v", bad.Err)
			}
			if h.speech.calls[tt.speechFail+":bad"] > 1 {
				t.Fatalf("orchestrator must not retry a failed item")
			}
			if res.Reports[1].Outcome != types.OutcomeDone {
				t.Fatalf("batch must continue after failure: %+v", res.Reports[1])
			}
			h.ws.assertReclaimed(t, 2)
		})
	}
}

func TestRun_VerifyVideo(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		h := newHarness(t)
		h.media.checksum = func(string) string { return "same" }
		res := h.uc.Run(context.Background(), Input{
			Items: []types.InputItem{item("a.mp4", "a")}, Speed: 1, MaxDuration: 30 * time.Second, WorkDir: h.work, VerifyVideo: true,
		})
		if res.Reports[0].Outcome != types.OutcomeDone {
			t.Fatalf("unexpected report: %+v", res.Reports[0])
		}
		if h.media.calls["checksum"] != 2 {
			t.Fatalf("checksum calls = %d", h.media.calls["checksum"])
		}
	})
	t.Run("mismatch", func(t *testing.T) {
		h := newHarness(t)
		h.media.checksum = func(p string) string { return filepath.Base(p) }
		res := h.uc.Run(context.Background(), Input{
			Items: []types.InputItem{item("a.mp4", "a")}, Speed: 1, MaxDuration: 30 * time.Second, WorkDir: h.work, VerifyVideo: true,
		})
		r := res.Reports[0]
		if r.Outcome != types.OutcomeFailed || !errors.Is(r.Err, types.ErrVideoAltered) || r.Stage != types.StageVerify {
			t.Fatalf("unexpected report: %+v", r)
		}
		h.ws.assertReclaimed(t, 1)
	})
}

func TestRun_WorkingSetCreationFailure(t *testing.T) {
	h := newHarness(t)
	h.uc.d.MkdirTemp = func(string, string) (string, error) { return "", errors.New("disk full") }

	r := h.run(item("a.mp4", "a")).Reports[0]
	if r.Outcome != types.OutcomeFailed || r.Stage != types.StagePrepare {
		t.Fatalf("unexpected report: %+v", r)
	}
	if h.media.calls["probe"] != 0 {
		t.Fatalf("no stage may run without a working set")
	}
}

func TestRun_CancelledContextStopsBatch(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.uc.Run(ctx, Input{
		Items:       []types.InputItem{item("a.mp4", "a"), item("b.mp4", "b")},
		MaxDuration: 30 * time.Second,
		WorkDir:     h.work,
	})
	if len(res.Reports) != 2 {
		t.Fatalf("every item must be reported, got %d", len(res.Reports))
	}
	for _, r := range res.Reports {
		if r.Outcome != types.OutcomeFailed || !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("unexpected report: %+v", r)
		}
	}
	if h.media.calls["probe"] != 0 || len(h.ws.created) != 0 {
		t.Fatalf("no work expected after cancellation")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in     string
		target lang.Tag
		want   string
	}{
		{"clip.mp4", lang.English, "clip_English.mp4"},
		{"Interview.MOV", lang.English, "Interview_English.mp4"},
		{"dir/sub/clip.mp4", lang.Russian, "clip_Русский.mp4"},
		{`C:\videos\clip.mov`, lang.English, "clip_English.mp4"},
		{"", lang.English, "video_English.mp4"},
		{"my.cool.clip.mp4", lang.English, "my.cool.clip_English.mp4"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in, tt.target); got != tt.want {
			t.Fatalf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContainerExt(t *testing.T) {
	if containerExt("a.MOV") != ".mov" || containerExt("a.mp4") != ".mp4" || containerExt("a.mkv") != ".mp4" {
		t.Fatalf("unexpected container extensions")
	}
}
