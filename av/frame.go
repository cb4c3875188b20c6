// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package av holds the small, dependency-free value types shared by the
// timing, framebuffer and decode packages: per-frame metadata that rides
// alongside a payload from capture through to the render callback.
package av

// Rotation is the pre-decode rotation to apply to a frame, mirrored
// through to the decoded output unchanged.
type Rotation int

// Supported rotations.
const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// ContentType distinguishes camera video from screen-share content;
// only meaningful on key frames (see Dispatcher.Decode).
type ContentType int

// Supported content types.
const (
	ContentTypeUnspecified ContentType = iota
	ContentTypeScreenshare
)

// ColorSpace is an opaque colour-space descriptor attached by the sender.
// The core never interprets it, only carries it from Frame to the
// decoded output.
type ColorSpace struct {
	Primaries    string
	Transfer     string
	Matrix       string
	RangeLimited bool
}

// PlayoutDelay is the sender's requested playout delay bounds, in ms.
// A frame carrying PlayoutDelay{0,0} means "decode as soon as possible".
type PlayoutDelay struct {
	MinMs int
	MaxMs int
}

// IsZero reports whether both bounds are zero, the sender's
// decode-immediately signal.
func (d PlayoutDelay) IsZero() bool {
	return d.MinMs == 0 && d.MaxMs == 0
}

// PacketInfo is per-packet arrival metadata carried through to the
// decoded frame for end-to-end timing reports.
type PacketInfo struct {
	SequenceNumber uint16
	ReceiveTimeMs  int64
	SSRC           uint32
}
