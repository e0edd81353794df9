package opusenc

import "github.com/thesyncim/gopus/types"

// FrameDuration is the Opus frame size, expressed in steps of 2.5ms
// rather than in samples; Samples48k converts it to samples at the
// pipeline's internal 48kHz rate.
type FrameDuration int

// Valid frame durations, per spec §6's configuration table.
const (
	FrameDuration2_5ms FrameDuration = 1 // steps of 2.5ms below
	FrameDuration5ms    FrameDuration = 2
	FrameDuration10ms   FrameDuration = 4
	FrameDuration20ms   FrameDuration = 8
	FrameDuration40ms   FrameDuration = 16
	FrameDuration60ms   FrameDuration = 24
	FrameDuration120ms  FrameDuration = 48
)

// DefaultFrameDuration is 20ms, the Opus-in-Ogg convention spec §6
// describes as the default.
const DefaultFrameDuration = FrameDuration20ms

// Samples48k converts a FrameDuration to a sample count at 48kHz: each
// unit above represents 2.5ms, i.e. 120 samples at 48kHz.
func (d FrameDuration) Samples48k() int { return int(d) * 120 }

// Re-exported so callers configuring signal hints and bandwidth don't
// need a direct import of the codec package for these two enums.
type (
	// Signal is a hint about the nature of the input (speech vs. music).
	Signal = types.Signal
	// Bandwidth restricts the encoder's internal frequency cutoff.
	Bandwidth = types.Bandwidth
)

// Signal hint values, re-exported from the underlying codec.
const (
	SignalAuto  = types.SignalAuto
	SignalVoice = types.SignalVoice
	SignalMusic = types.SignalMusic
)

// CtlTag identifies a ctl request per spec §9's "tagged-union request
// type" design note: a sum over {SetInt, GetInt, SetCallback, ...}
// dispatched by pattern match, replacing the original's type-erased
// variadic ctl() call.
type CtlTag int

// Ctl tags. Every tag is forwarded to the Opus multistream encoder. The
// muxer settings (decision delay, muxing delay, comment padding, serial
// number, packet callback) have no ctl tag; they are set only through
// their Set* methods.
const (
	CtlSetBitrate CtlTag = iota
	CtlGetBitrate
	CtlSetComplexity
	CtlGetComplexity
	CtlSetVBR
	CtlGetVBR
	CtlSetVBRConstraint
	CtlGetVBRConstraint
	CtlSetFEC
	CtlGetFEC
	CtlSetPacketLossPercent
	CtlGetPacketLossPercent
	CtlSetDTX
	CtlGetDTX
	CtlSetSignal
	CtlGetSignal
	CtlSetForceChannels
	CtlGetForceChannels
	CtlSetLSBDepth
	CtlGetLSBDepth
	CtlSetBandwidth
	CtlGetBandwidth
	CtlGetFinalRange
	CtlGetLookahead
)

// CtlRequest is the tagged-union ctl request of spec §9: exactly one of
// IntVal/IntPtr/Bool/BoolPtr is meaningful, selected by Tag. Ctl returns
// ErrUnimplemented for a Tag this encoder doesn't recognize, ErrBadArg
// for a get request whose pointer is nil, and ErrBadArg when the codec
// rejects a CtlSetLSBDepth value. Other set values are handed to the
// codec without a range check here.
type CtlRequest struct {
	Tag     CtlTag
	IntVal  int
	IntPtr  *int
	Bool    bool
	BoolPtr *bool
}

// Application selects the Opus codec's encoding mode, per spec §6's
// "Opus codec settings" row. It is applied once, at construction.
type Application int

// Application values, mirroring the teacher's own ApplicationVoIP/
// ApplicationAudio pair (thesyncim-gopus/encoder.go) plus the
// restricted-low-delay mode spec §6 lists alongside them.
const (
	ApplicationAudio Application = iota
	ApplicationVoIP
	ApplicationRestrictedLowDelay
)

// Default tuning values, per spec §6's configuration table.
const (
	DefaultDecisionDelay = 96000
	DefaultMuxingDelay   = 48000
)
