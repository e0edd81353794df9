package opusenc

import (
	"fmt"

	"github.com/xiph/libopusenc/comment"
)

// This file holds the Set*/getter configuration surface (spec §6's
// per-field accessors) and the Ctl dispatcher (spec §9's tagged-union
// replacement for the original's variadic ctl call). Most setters simply
// forward to the underlying multistream codec; a handful are handled
// locally (serial number, comment padding, delays).

// SetDecisionDelay overrides how many samples of look-ahead the encode
// loop waits for before committing a frame (spec §6).
func (e *Encoder) SetDecisionDelay(samples int64) {
	e.decisionDelay = samples
}

// DecisionDelay returns the current decision-delay setting.
func (e *Encoder) DecisionDelay() int64 { return e.decisionDelay }

// SetMuxingDelay overrides the packer's page-closing delay bound.
func (e *Encoder) SetMuxingDelay(samples int64) {
	e.muxingDelay = samples
	if e.packer != nil {
		e.packer.SetMuxingDelay(uint64(samples))
	}
}

// MuxingDelay returns the current muxing-delay setting.
func (e *Encoder) MuxingDelay() int64 { return e.muxingDelay }

// SetFrameDuration overrides the Opus frame size used by the encode loop.
// It takes effect starting with the next frame pulled from the staging
// buffer; frames already committed are unaffected.
func (e *Encoder) SetFrameDuration(d FrameDuration) {
	e.frameSize = d.Samples48k()
}

// FrameDuration returns the current frame-size setting.
func (e *Encoder) FrameDuration() FrameDuration {
	return FrameDuration(e.frameSize / 120)
}

// SetCommentPadding overrides the number of zero padding bytes appended
// to every stream's comment packet.
func (e *Encoder) SetCommentPadding(n int) { e.commentPadding = n }

// CommentPadding returns the current comment-padding setting.
func (e *Encoder) CommentPadding() int { return e.commentPadding }

// SetSerialNumber overrides the tail stream's Ogg serial number. It
// fails with ErrTooLate once that stream's header has already frozen.
func (e *Encoder) SetSerialNumber(serial uint32) error {
	tail := e.streams.Tail()
	if tail == nil {
		return fmt.Errorf("%w: no active stream", ErrBadArg)
	}
	if err := tail.SetSerial(serial); err != nil {
		return fmt.Errorf("%w: %v", ErrTooLate, err)
	}
	return nil
}

// SetCloseAtEnd overrides whether the tail stream's sink is closed when
// that stream reaches EOS.
func (e *Encoder) SetCloseAtEnd(v bool) {
	if tail := e.streams.Tail(); tail != nil {
		tail.SetCloseAtEnd(v)
		// An initialized stream's flag was already recorded for page
		// routing; keep that record in step.
		if serial, ok := tail.Serial(); ok && tail.Initialized() {
			e.serialCloseAtEnd[serial] = v
		}
	}
}

// SetPacketCallback installs a callback invoked once per committed
// packet, after commit and before its containing page reaches the sink
// (spec §5's ordering guarantee). A nil callback disables notification.
func (e *Encoder) SetPacketCallback(cb func(data []byte, eos bool)) {
	e.packetCallback = cb
}

// AddComment adds a TAG=VALUE entry to the tail stream's comment block.
// It fails with ErrTooLate once that stream's header has already frozen.
func (e *Encoder) AddComment(tag, value string) error {
	tail := e.streams.Tail()
	if tail == nil {
		return fmt.Errorf("%w: no active stream", ErrBadArg)
	}
	if tail.HeaderFrozen() {
		return ErrTooLate
	}
	return tail.Comment().Add(tag, value)
}

// SetVendorString overrides the tail stream's comment vendor string. It
// fails with ErrTooLate once that stream's header has already frozen.
func (e *Encoder) SetVendorString(vendor string) error {
	tail := e.streams.Tail()
	if tail == nil {
		return fmt.Errorf("%w: no active stream", ErrBadArg)
	}
	if tail.HeaderFrozen() {
		return ErrTooLate
	}
	tail.Comment().SetVendor(vendor)
	return nil
}

// AddPicture adds a METADATA_BLOCK_PICTURE entry to the tail stream's
// comment block. It fails with ErrTooLate once that stream's header has
// already frozen.
func (e *Encoder) AddPicture(pic comment.Picture) error {
	tail := e.streams.Tail()
	if tail == nil {
		return fmt.Errorf("%w: no active stream", ErrBadArg)
	}
	if tail.HeaderFrozen() {
		return ErrTooLate
	}
	return tail.Comment().AddPicture(pic)
}

// SetBitrate overrides the codec's total target bitrate in bits/s.
func (e *Encoder) SetBitrate(bps int) { e.codec.SetBitrate(bps) }

// Bitrate returns the codec's current total target bitrate.
func (e *Encoder) Bitrate() int { return e.codec.Bitrate() }

// SetComplexity overrides the codec's complexity (0-10).
func (e *Encoder) SetComplexity(c int) { e.codec.SetComplexity(c) }

// Complexity returns the codec's current complexity setting.
func (e *Encoder) Complexity() int { return e.codec.Complexity() }

// SetVBR enables or disables variable bitrate encoding.
func (e *Encoder) SetVBR(enabled bool) { e.codec.SetVBR(enabled) }

// VBR reports whether variable bitrate encoding is enabled.
func (e *Encoder) VBR() bool { return e.codec.VBR() }

// SetVBRConstraint enables or disables constrained VBR.
func (e *Encoder) SetVBRConstraint(constrained bool) { e.codec.SetVBRConstraint(constrained) }

// VBRConstraint reports whether constrained VBR is enabled.
func (e *Encoder) VBRConstraint() bool { return e.codec.VBRConstraint() }

// SetFEC enables or disables in-band forward error correction.
func (e *Encoder) SetFEC(enabled bool) { e.codec.SetFEC(enabled) }

// FEC reports whether in-band forward error correction is enabled.
func (e *Encoder) FEC() bool { return e.codec.FECEnabled() }

// SetPacketLossPercent sets the expected packet loss percentage (0-100)
// used to tune FEC.
func (e *Encoder) SetPacketLossPercent(percent int) { e.codec.SetPacketLoss(percent) }

// PacketLossPercent returns the configured expected packet loss.
func (e *Encoder) PacketLossPercent() int { return e.codec.PacketLoss() }

// SetDTX enables or disables discontinuous transmission.
func (e *Encoder) SetDTX(enabled bool) { e.codec.SetDTX(enabled) }

// DTX reports whether discontinuous transmission is enabled.
func (e *Encoder) DTX() bool { return e.codec.DTXEnabled() }

// SetSignal overrides the encoder's signal-type hint.
func (e *Encoder) SetSignal(s Signal) { e.codec.SetSignal(s) }

// GetSignal returns the current signal-type hint.
func (e *Encoder) GetSignal() Signal { return e.codec.Signal() }

// SetForceChannels forces the codec to encode as mono or stereo
// regardless of the configured channel count (0 to disable).
func (e *Encoder) SetForceChannels(channels int) { e.codec.SetForceChannels(channels) }

// ForceChannels returns the current forced channel-count override.
func (e *Encoder) ForceChannels() int { return e.codec.ForceChannels() }

// SetLSBDepth hints the codec about the source material's effective bit
// depth (8-24).
func (e *Encoder) SetLSBDepth(depth int) error {
	if err := e.codec.SetLSBDepth(depth); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArg, err)
	}
	return nil
}

// LSBDepth returns the current LSB-depth hint.
func (e *Encoder) LSBDepth() int { return e.codec.LSBDepth() }

// SetBandwidth overrides the codec's internal frequency cutoff.
func (e *Encoder) SetBandwidth(bw Bandwidth) { e.codec.SetBandwidth(bw) }

// GetBandwidth returns the codec's current bandwidth setting.
func (e *Encoder) GetBandwidth() Bandwidth { return e.codec.Bandwidth() }

// FinalRange returns the codec's internal entropy-coder final range, a
// decoder-verifiable fingerprint of the last encoded frame.
func (e *Encoder) FinalRange() uint32 { return e.codec.GetFinalRange() }

// Lookahead returns the codec's algorithmic look-ahead, in samples at
// 48kHz.
func (e *Encoder) Lookahead() int { return e.codec.Lookahead() }

// Ctl dispatches a tagged-union configuration request (spec §9),
// mirroring the original library's single ctl() entry point without its
// type-erased variadic arguments.
func (e *Encoder) Ctl(req CtlRequest) error {
	switch req.Tag {
	case CtlSetBitrate:
		e.SetBitrate(req.IntVal)
	case CtlGetBitrate:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.Bitrate()
	case CtlSetComplexity:
		e.SetComplexity(req.IntVal)
	case CtlGetComplexity:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.Complexity()
	case CtlSetVBR:
		e.SetVBR(req.Bool)
	case CtlGetVBR:
		if req.BoolPtr == nil {
			return fmt.Errorf("%w: nil BoolPtr", ErrBadArg)
		}
		*req.BoolPtr = e.VBR()
	case CtlSetVBRConstraint:
		e.SetVBRConstraint(req.Bool)
	case CtlGetVBRConstraint:
		if req.BoolPtr == nil {
			return fmt.Errorf("%w: nil BoolPtr", ErrBadArg)
		}
		*req.BoolPtr = e.VBRConstraint()
	case CtlSetFEC:
		e.SetFEC(req.Bool)
	case CtlGetFEC:
		if req.BoolPtr == nil {
			return fmt.Errorf("%w: nil BoolPtr", ErrBadArg)
		}
		*req.BoolPtr = e.FEC()
	case CtlSetPacketLossPercent:
		e.SetPacketLossPercent(req.IntVal)
	case CtlGetPacketLossPercent:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.PacketLossPercent()
	case CtlSetDTX:
		e.SetDTX(req.Bool)
	case CtlGetDTX:
		if req.BoolPtr == nil {
			return fmt.Errorf("%w: nil BoolPtr", ErrBadArg)
		}
		*req.BoolPtr = e.DTX()
	case CtlSetSignal:
		e.SetSignal(Signal(req.IntVal))
	case CtlGetSignal:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = int(e.GetSignal())
	case CtlSetForceChannels:
		e.SetForceChannels(req.IntVal)
	case CtlGetForceChannels:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.ForceChannels()
	case CtlSetLSBDepth:
		return e.SetLSBDepth(req.IntVal)
	case CtlGetLSBDepth:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.LSBDepth()
	case CtlSetBandwidth:
		e.SetBandwidth(Bandwidth(req.IntVal))
	case CtlGetBandwidth:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = int(e.GetBandwidth())
	case CtlGetFinalRange:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = int(e.FinalRange())
	case CtlGetLookahead:
		if req.IntPtr == nil {
			return fmt.Errorf("%w: nil IntPtr", ErrBadArg)
		}
		*req.IntPtr = e.Lookahead()
	default:
		return ErrUnimplemented
	}
	return nil
}
