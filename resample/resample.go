// Package resample adapts a caller's input sample rate to the 48kHz the
// rest of the encoding pipeline operates in. At 48kHz it is a pass-through;
// otherwise it wraps a polyphase sample-rate converter.
package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// TargetRate is the sample rate the rest of the pipeline expects.
const TargetRate = 48000

// maxFramesPerPass bounds how many frames are pushed through the
// underlying converter in one call, per spec.
const maxFramesPerPass = 256

// Adapter converts interleaved float32 PCM at an arbitrary input rate to
// interleaved float32 PCM at 48kHz.
type Adapter struct {
	passthrough bool
	channels    int
	conv        resampling.Resampler
}

// New builds an Adapter for inputRate Hz, channels-wide interleaved PCM.
// If inputRate is already TargetRate, the adapter degenerates to a
// pass-through and no converter is instantiated.
func New(inputRate, channels int) (*Adapter, error) {
	if inputRate == TargetRate {
		return &Adapter{passthrough: true, channels: channels}, nil
	}
	conv, err := resampling.New(&resampling.Config{
		InputRate:  float64(inputRate),
		OutputRate: float64(TargetRate),
		Channels:   channels,
		// Quality ~5 out of the library's scale sits below its highest
		// preset; see DESIGN.md for why QualityMedium was chosen over
		// QualityHigh.
		Quality: resampling.QualitySpec{Preset: resampling.QualityMedium},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return &Adapter{channels: channels, conv: conv}, nil
}

// Passthrough reports whether this adapter performs no conversion.
func (a *Adapter) Passthrough() bool { return a.passthrough }

// Process converts interleaved input PCM (channels-wide) to interleaved
// 48kHz PCM, internally chunking the call at maxFramesPerPass frames per
// pass through the underlying converter.
func (a *Adapter) Process(input []float32) ([]float32, error) {
	if a.passthrough {
		return input, nil
	}

	var out []float32
	frameLen := a.channels
	maxSamplesPerPass := maxFramesPerPass * frameLen
	for len(input) > 0 {
		chunk := input
		if len(chunk) > maxSamplesPerPass {
			chunk = chunk[:maxSamplesPerPass]
		}
		input = input[len(chunk):]

		in64 := make([]float64, len(chunk))
		for i, s := range chunk {
			in64[i] = float64(s)
		}
		out64, err := a.conv.Process(in64)
		if err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
		for _, s := range out64 {
			out = append(out, float32(s))
		}
	}
	return out, nil
}

// NormalizeInt16 converts 16-bit signed PCM to float32 in [-1, 1) by the
// spec's fixed 1/32768 scale factor.
func NormalizeInt16(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}
