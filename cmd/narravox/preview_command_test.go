package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreview_FormulaWritesAudioFile(t *testing.T) {
	var req map[string]any
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/voice-profiles/preview" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode preview body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFfake-wav-bytes"))
	})

	out := filepath.Join(t.TempDir(), "clip.wav")
	stdout, _, err := runCLI(t, "--config", missingConfig(t), "--server", srv.URL,
		"preview", "--formula", "af_sky*2+af_bella*2", "--text", "Vexis of Brightmoor", "--out", out)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	if got := req["profile"]; got != "af_bella*0.50+af_sky*0.50" {
		t.Errorf("profile sent = %v, want the canonical formula", got)
	}
	if got := req["text"]; got != "Vexis of Brightmoor" {
		t.Errorf("text sent = %v", got)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(data) != "RIFFfake-wav-bytes" {
		t.Fatalf("clip bytes = %q", data)
	}
	if !strings.Contains(stdout, "wrote") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestPreview_VoiceUsesSpeakerEndpoint(t *testing.T) {
	var req map[string]any
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/speaker-preview" {
			t.Errorf("path = %s, want /api/speaker-preview", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode preview body: %v", err)
		}
		w.Write([]byte("RIFF"))
	})

	out := filepath.Join(t.TempDir(), "clip.wav")
	_, _, err := runCLI(t, "--config", missingConfig(t), "--server", srv.URL,
		"preview", "--voice", "af_bella", "--out", out)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := req["voice"]; got != "af_bella" {
		t.Errorf("voice sent = %v", got)
	}
	if _, hasProfile := req["profile"]; hasProfile {
		t.Error("speaker preview must not carry a profile")
	}
}

func TestPreview_SelectorsAreExclusive(t *testing.T) {
	_, _, err := runCLI(t, "--config", missingConfig(t),
		"preview", "--voice", "af_bella", "--formula", "af_sky*1")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("err = %v, want mutual-exclusion error", err)
	}
}

func TestPreview_ProfileResolvesOverrideVoice(t *testing.T) {
	var req map[string]any
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/entities":
			writePayload(t, w, fixturePayload())
		case "/api/voice-profiles/preview":
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode preview body: %v", err)
			}
			w.Write([]byte("RIFF"))
		default:
			http.NotFound(w, r)
		}
	})

	out := filepath.Join(t.TempDir(), "clip.wav")
	_, _, err := runCLI(t, "--config", missingConfig(t), "--server", srv.URL,
		"preview", "--profile", "Seraphiel", "--out", out)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := req["profile"]; got != "af_heart*0.70+af_sky*0.30" {
		t.Errorf("profile sent = %v, want Seraphiel's mix", got)
	}
}

func TestPreview_DashWritesRawAudioToStdout(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFraw"))
	})

	stdout, _, err := runCLI(t, "--config", missingConfig(t), "--server", srv.URL,
		"preview", "--voice", "af_bella", "--out", "-")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if stdout != "RIFFraw" {
		t.Fatalf("stdout = %q, want the raw audio bytes and nothing else", stdout)
	}
}

func TestPreview_UnknownProfileFails(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writePayload(t, w, fixturePayload())
	})

	_, _, err := runCLI(t, "--config", missingConfig(t), "--server", srv.URL,
		"preview", "--profile", "Nobody")
	if err == nil || !strings.Contains(err.Error(), "no voice assignment") {
		t.Fatalf("err = %v, want a no-voice-assignment error", err)
	}
}
