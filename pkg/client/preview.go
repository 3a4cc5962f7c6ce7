package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

// PreviewRequest describes a short audio render used to audition a voice.
type PreviewRequest struct {
	// Text is the sample sentence to speak.
	Text string `json:"text"`

	// Voice is a single catalog voice id. Mutually exclusive with Profile.
	Voice string `json:"voice,omitempty"`

	// Profile is a weighted mix formula such as
	// "af_bella*0.60+af_sky*0.40". Mutually exclusive with Voice.
	Profile string `json:"profile,omitempty"`

	// Language selects the grapheme-to-phoneme pipeline; empty lets the
	// server infer it from the voice id.
	Language string `json:"language,omitempty"`

	// Speed is the playback rate multiplier; 0 means server default.
	Speed float64 `json:"speed,omitempty"`

	// MaxSeconds caps the rendered clip length; 0 means server default.
	MaxSeconds int `json:"max_seconds,omitempty"`
}

// PreviewSpeaker renders req.Text with a single voice and returns the WAV
// bytes. req.Voice must be set.
func (c *Client) PreviewSpeaker(ctx context.Context, req PreviewRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("client: preview speaker: text must not be empty")
	}
	if req.Voice == "" {
		return nil, errors.New("client: preview speaker: voice must not be empty")
	}
	req.Profile = ""

	return c.do(ctx, "POST", speakerPreviewEndpoint, nil, req, "audio/wav")
}

// PreviewProfile renders req.Text with a weighted voice mix and returns the
// WAV bytes. req.Profile must parse to a non-empty mix; it is re-serialized
// to canonical form before sending.
func (c *Client) PreviewProfile(ctx context.Context, req PreviewRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("client: preview profile: text must not be empty")
	}
	mix := voicemix.Parse(req.Profile)
	if len(mix) == 0 {
		return nil, fmt.Errorf("client: preview profile: %q is not a valid voice mix", req.Profile)
	}
	req.Profile = voicemix.Format(mix)
	req.Voice = ""

	return c.do(ctx, "POST", profilePreviewEndpoint, nil, req, "audio/wav")
}
