// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framebuffer implements the receive-side jitter buffer: a
// dependency-aware frame store plus the scheduler that assembles and
// releases decodable superframes in render order. It generalises the
// teacher's single-mutex, condition-signalled producer/consumer queue
// (media/cache/packqueue.go) to a store that must also track a
// reference DAG and a wall-clock render schedule.
package framebuffer

import (
	"errors"

	"github.com/cnotch/jbcore/av"
)

// MaxSpatialLayers bounds the spatial_layer field (0..MaxSpatialLayers-1).
const MaxSpatialLayers = 5

// MaxReferences bounds the number of references a single frame may carry.
const MaxReferences = 5

// FrameType distinguishes frames that reseed the store from those that
// depend on prior frames.
type FrameType int

// Supported frame types.
const (
	FrameTypeDelta FrameType = iota
	FrameTypeKey
)

// Frame is a single spatial layer as handed to Insert by the producer.
type Frame struct {
	PictureID               uint16
	SpatialLayer            uint8
	RTPTimestamp            uint32
	ReceivedTimeMs          int64
	RenderTimeMs            int64 // -1 = compute from RTPTimestamp
	References              []uint16
	InterLayerPredicted     bool
	IsLastSpatialLayer      bool
	FrameType               FrameType
	Payload                 []byte
	DelayedByRetransmission bool

	ColorSpace   *av.ColorSpace
	Rotation     av.Rotation
	ContentType  av.ContentType
	SendTiming   *av.SendTiming
	NTPTimeMs    int64 // -1 if not estimable
	PlayoutDelay *av.PlayoutDelay
	PacketInfos  []av.PacketInfo
}

// Superframe is the concatenation of all spatial layers sharing one
// picture id, delivered as a single decode unit by NextFrame.
type Superframe struct {
	PictureID    uint16
	RTPTimestamp uint32
	RenderTimeMs int64
	FrameType    FrameType
	Payload      []byte
	LayerSizes   []int
	SpatialIndex uint8

	ReceivedTimeMs          int64
	DelayedByRetransmission bool
	ColorSpace              *av.ColorSpace
	Rotation                av.Rotation
	ContentType             av.ContentType
	SendTiming              *av.SendTiming
	NTPTimeMs               int64
	PlayoutDelay            *av.PlayoutDelay
	PacketInfos             []av.PacketInfo
}

// SpatialLayerSize returns the payload size of the i-th assembled layer.
func (s *Superframe) SpatialLayerSize(i int) int {
	if i < 0 || i >= len(s.LayerSizes) {
		return 0
	}
	return s.LayerSizes[i]
}

// Sentinel errors returned by NextFrame.
var (
	// ErrTimedOut is returned when max_wait_ms elapses with no
	// decodable superframe available.
	ErrTimedOut = errors.New("framebuffer: timed out waiting for a decodable frame")
	// ErrStopped is returned exactly once to a waiter after Stop is
	// called; the consumer must not call NextFrame again afterward.
	ErrStopped = errors.New("framebuffer: stopped")
)

type layerKey struct {
	pictureID    uint16
	spatialLayer uint8
}

type entry struct {
	frame                Frame
	numMissingContinuous int
	numMissingDecodable  int
	continuous           bool
	popped               bool
}
