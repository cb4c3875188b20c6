// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av

// TimingFlags marks which stages of the send-side pipeline stamped a
// SendTiming, mirroring the sender's own opt-in per-flag instrumentation.
type TimingFlags uint8

// Flags a sender may set on SendTiming; zero means no timing was attached.
const (
	TimingFlagsInvalid TimingFlags = 0
	TimingFlagsTriggeredByTimer TimingFlags = 1 << (iota - 1)
	TimingFlagsTriggeredBySize
)

// SendTiming carries the sender-side pipeline timestamps needed to
// reconstruct end-to-end frame timing. All fields are in the sender's
// NTP-derived clock and must be reconciled with the local clock before
// use (see decode.Dispatcher.OnDecoded).
type SendTiming struct {
	Flags                 TimingFlags
	EncodeStartMs         int64
	EncodeFinishMs        int64
	PacketizationFinishMs int64
	PacerExitMs           int64
	NetworkTimestampMs    int64
	Network2TimestampMs   int64
	ReceiveStartMs        int64
	ReceiveFinishMs       int64
}

// TimingFrameInfo is the fully reconciled, local-clock end-to-end timing
// record delivered to the stats sink for one decoded frame.
type TimingFrameInfo struct {
	Flags                 TimingFlags
	RTPTimestamp          uint32
	CaptureTimeMs         int64
	EncodeStartMs         int64
	EncodeFinishMs        int64
	PacketizationFinishMs int64
	PacerExitMs           int64
	NetworkTimestampMs    int64
	Network2TimestampMs   int64
	ReceiveStartMs        int64
	ReceiveFinishMs       int64
	DecodeStartMs         int64
	DecodeFinishMs        int64
	RenderTimeMs          int64
}

// VideoMeta describes the negotiated video codec, kept from the
// teacher's shape; decode.SettingsFromVideoMeta turns it into decoder
// settings.
type VideoMeta struct {
	Codec     string  `json:"codec"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	FrameRate float64 `json:"framerate,omitempty"`
}
