// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decode

import "github.com/cnotch/jbcore/av"

// frameInfo is the metadata copied out of a Superframe before it is
// handed to the decoder plugin, so the asynchronous callback path never
// touches the caller's original frame.
type frameInfo struct {
	decodeStartMs int64
	renderTimeMs  int64
	rotation      av.Rotation
	contentType   av.ContentType
	ntpTimeMs     int64
	colorSpace    *av.ColorSpace
	packetInfos   []av.PacketInfo
	sendTiming    *av.SendTiming
}

// frameInfoRing is a fixed-size FIFO of in-flight decodes keyed by RTP
// timestamp, generalising generic_decoder.cc's kDecoderFrameMemoryLength
// array plus its RtcTimestampMap lookup.
type frameInfoRing struct {
	capacity int
	order    []uint32
	slots    map[uint32]*frameInfo
}

func newFrameInfoRing(capacity int) *frameInfoRing {
	return &frameInfoRing{
		capacity: capacity,
		slots:    make(map[uint32]*frameInfo, capacity),
	}
}

// add records info under rtpTimestamp. If the ring was already at
// capacity, the oldest in-flight slot is evicted and returned so the
// caller can log it as backed-up.
func (r *frameInfoRing) add(rtpTimestamp uint32, info *frameInfo) (evictedTs uint32, evicted *frameInfo, didEvict bool) {
	if _, exists := r.slots[rtpTimestamp]; !exists {
		r.order = append(r.order, rtpTimestamp)
	}
	r.slots[rtpTimestamp] = info

	if len(r.order) > r.capacity {
		evictedTs = r.order[0]
		r.order = r.order[1:]
		evicted, didEvict = r.slots[evictedTs], true
		delete(r.slots, evictedTs)
	}
	return
}

// pop removes and returns the slot for rtpTimestamp, or nil if the
// decoder emitted a timestamp the ring never received.
func (r *frameInfoRing) pop(rtpTimestamp uint32) *frameInfo {
	info, ok := r.slots[rtpTimestamp]
	if !ok {
		return nil
	}
	delete(r.slots, rtpTimestamp)
	for i, ts := range r.order {
		if ts == rtpTimestamp {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return info
}
