//go:build integration

package itest

import (
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// fakeYandex serves the three speech endpoints on one host and counts calls per endpoint.
type fakeYandex struct {
	*httptest.Server

	transcript  string
	translation string
	speech      []byte

	mu    sync.Mutex
	calls map[string]int
	texts []string
}

func newFakeYandex(t *testing.T, transcript, translation string, speech []byte) *fakeYandex {
	t.Helper()
	f := &fakeYandex{transcript: transcript, translation: translation, speech: speech, calls: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/speech/v1/stt:recognize", f.recognize)
	mux.HandleFunc("/foundationModels/v1/completion", f.complete)
	mux.HandleFunc("/speech/v1/tts:synthesize", f.synthesize)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeYandex) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeYandex) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeYandex) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Api-Key ") {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	return true
}

// recognize answers {} for near-silent PCM and the configured transcript otherwise.
func (f *fakeYandex) recognize(w http.ResponseWriter, r *http.Request) {
	f.count("stt")
	if !f.authorized(w, r) {
		return
	}
	pcm, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	if isSilent(pcm) {
		_, _ = io.WriteString(w, `{}`)
		return
	}
	out, _ := sjson.Set(`{}`, "result", f.transcript)
	_, _ = io.WriteString(w, out)
}

func (f *fakeYandex) complete(w http.ResponseWriter, r *http.Request) {
	f.count("llm")
	if !f.authorized(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.texts = append(f.texts, gjson.GetBytes(body, "messages.1.text").String())
	f.mu.Unlock()

	out, _ := sjson.Set(`{}`, "result.alternatives.0.message.role", "assistant")
	out, _ = sjson.Set(out, "result.alternatives.0.message.text", f.translation)
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, out)
}

func (f *fakeYandex) synthesize(w http.ResponseWriter, r *http.Request) {
	f.count("tts")
	if !f.authorized(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("format") != "oggopus" || r.PostForm.Get("text") == "" {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "audio/ogg")
	_, _ = w.Write(f.speech)
}

func isSilent(pcm []byte) bool {
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		if v > 64 || v < -64 {
			return false
		}
	}
	return true
}
