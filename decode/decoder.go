// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decode reconciles the asynchronous decoder callback with the
// frame that was handed to Decode, generalising generic_decoder.cc's
// VCMGenericDecoder/VCMDecodedFrameCallback pair into one Dispatcher.
package decode

import "github.com/cnotch/jbcore/av"

// Settings describes the negotiated codec configuration passed to
// InitDecode.
type Settings struct {
	Codec  string
	Width  int
	Height int
}

// SettingsFromVideoMeta builds the InitDecode configuration from the
// codec negotiated out-of-band (SDP offer/answer or a signaling
// message), the ingest side's equivalent of the negotiated VideoMeta a
// muxer is constructed with.
func SettingsFromVideoMeta(m av.VideoMeta) Settings {
	return Settings{
		Codec:  m.Codec,
		Width:  m.Width,
		Height: m.Height,
	}
}

// Status mirrors the decoder plugin's raw return code: negative values
// are errors, DecodeOutputPending means a frame will follow via the
// registered callback, DecodeNoOutput means none will.
type Status int32

// Sentinel status values a Decoder may return from Decode.
const (
	DecodeOutputPending Status = 0
	DecodeNoOutput      Status = 1
)

// Callback is what a Decoder plugin invokes, synchronously or from its
// own thread, once a frame has been produced.
type Callback interface {
	OnDecoded(rtpTimestamp uint32, payload []byte, decodeTimeMs int64)
}

// Decoder is the pluggable codec collaborator, analogous to
// webrtc::VideoDecoder.
type Decoder interface {
	InitDecode(settings Settings, numberOfCores int) error
	Decode(payload []byte, missingFrame bool, renderTimeMs int64) (Status, error)
	RegisterDecodeCompleteCallback(cb Callback) error
	PrefersLateDecoding() bool
	ImplementationName() string
}

// ReceiveCallback is the render-side collaborator a decoded frame is
// finally handed to.
type ReceiveCallback interface {
	FrameToRender(frame DecodedFrame) error
	OnDecoderImplementationName(name string)
}

// DecodedFrame is the fully reconciled output of one decode, metadata
// rebuilt from the FrameInfo slot rather than borrowed from the
// original Superframe, since the callback that produces it may run
// well after the frame that triggered it has been discarded.
type DecodedFrame struct {
	RTPTimestamp uint32
	Payload      []byte
	RenderTimeMs int64
	DecodeTimeMs int64
	ContentType  av.ContentType
	Rotation     av.Rotation
	NTPTimeMs    int64
	ColorSpace   *av.ColorSpace
}
