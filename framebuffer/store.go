// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framebuffer

import (
	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/jbcore/stats"
)

// Insert validates and stores frame, returning the picture id of the
// furthest forward-reachable continuous frame known to the store, or
// -1 if the frame was rejected or nothing is continuous yet.
func (b *Buffer) Insert(f Frame) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validateLocked(f) {
		return -1
	}

	k := layerKey{f.PictureID, f.SpatialLayer}
	if _, exists := b.entries[k]; exists {
		// duplicate insert is a no-op.
		return b.currentLastContinuousLocked()
	}

	if b.hasHighestDecodedRTP && AheadOfU32(b.highestDecodedRTP, f.RTPTimestamp) {
		// reject a frame whose RTP timestamp is older than the
		// highest RTP timestamp already handed to the decoder.
		return -1
	}

	isNewPicture := len(b.byPicture[f.PictureID]) == 0
	if isNewPicture && len(b.byPicture) >= b.capacity {
		if f.FrameType != FrameTypeKey {
			// capacity exceeded, only a keyframe may re-seed.
			b.discardedCount++
			b.stats.OnDiscardedPacketsUpdated(b.discardedCount)
			return -1
		}
		b.clearLocked()
	}

	if b.timing != nil {
		b.timing.OnFrameArrived(f.RTPTimestamp, f.ReceivedTimeMs, f.DelayedByRetransmission)
		if f.RenderTimeMs < 0 {
			f.RenderTimeMs = b.timing.RenderTime(f.RTPTimestamp, nowMs(), f.PlayoutDelay)
		}
		b.reportTimingsLocked()
	}

	e := &entry{frame: f}
	b.entries[k] = e
	b.byPicture[f.PictureID] = append(b.byPicture[f.PictureID], e)

	e.numMissingContinuous = b.missingContinuousLocked(e)
	if e.numMissingContinuous == 0 {
		b.markContinuousLocked(e)
	}
	b.cascadeContinuityLocked()

	b.signalLocked()
	return b.currentLastContinuousLocked()
}

// validateLocked rejects self/forward references. Staleness and
// capacity are checked in Insert once we know this isn't a duplicate.
func (b *Buffer) validateLocked(f Frame) bool {
	if len(f.References) > MaxReferences {
		return false
	}
	for _, ref := range f.References {
		if ref == f.PictureID || AheadOfU16(ref, f.PictureID) {
			return false
		}
	}
	return true
}

func (b *Buffer) pidPresentLocked(pid uint16) bool {
	return len(b.byPicture[pid]) > 0
}

func (b *Buffer) pidAllPoppedLocked(pid uint16) bool {
	layers := b.byPicture[pid]
	if len(layers) == 0 {
		return false
	}
	for _, le := range layers {
		if !le.popped {
			return false
		}
	}
	return true
}

// missingContinuousLocked counts references (and, for an
// inter-layer-predicted frame, the same-pid lower spatial layer) not
// yet present in the store.
func (b *Buffer) missingContinuousLocked(e *entry) int {
	missing := 0
	for _, ref := range e.frame.References {
		if !b.pidPresentLocked(ref) {
			missing++
		}
	}
	if e.frame.InterLayerPredicted {
		if _, ok := b.entries[layerKey{e.frame.PictureID, e.frame.SpatialLayer - 1}]; !ok {
			missing++
		}
	}
	return missing
}

// missingDecodableLocked counts cross-picture references not yet
// popped for decoding, plus, for an inter-layer-predicted frame, the
// same-pid lower spatial layer if it isn't even continuous yet. The
// lower layer only needs to be continuous, not already popped: all
// spatial layers of a picture id are popped together, atomically, by
// assembleAndPopLocked, so requiring the lower layer to be popped in
// advance would make every inter-layer-predicted layer permanently
// undecodable.
func (b *Buffer) missingDecodableLocked(e *entry) int {
	missing := 0
	for _, ref := range e.frame.References {
		if !b.pidAllPoppedLocked(ref) {
			missing++
		}
	}
	if e.frame.InterLayerPredicted {
		lower, ok := b.entries[layerKey{e.frame.PictureID, e.frame.SpatialLayer - 1}]
		if !ok || !lower.continuous {
			missing++
		}
	}
	return missing
}

func (b *Buffer) markContinuousLocked(e *entry) {
	if e.continuous {
		return
	}
	e.continuous = true
	e.numMissingDecodable = b.missingDecodableLocked(e)

	if AheadOfU16(e.frame.PictureID, b.lastContinuousPID) || !b.hasLastContinuous {
		b.lastContinuousPID = e.frame.PictureID
		b.hasLastContinuous = true
	}

	if e.frame.IsLastSpatialLayer {
		size, contentType := b.superframeSizeLocked(e.frame.PictureID)
		isKey := e.frame.FrameType == FrameTypeKey
		b.stats.OnCompleteFrame(isKey, size, contentType)

		if isKey {
			b.keyFrameCount++
		} else {
			b.deltaFrameCount++
		}
		b.stats.OnFrameCountsUpdated(stats.FrameCounts{
			KeyFrames:   b.keyFrameCount,
			DeltaFrames: b.deltaFrameCount,
		})
	}
}

// cascadeContinuityLocked re-evaluates every non-continuous entry
// until a fixed point is reached by rescanning the whole map: no
// explicit back-edges are kept.
func (b *Buffer) cascadeContinuityLocked() {
	for {
		progressed := false
		for _, e := range b.entries {
			if e.continuous {
				continue
			}
			if missing := b.missingContinuousLocked(e); missing == 0 {
				b.markContinuousLocked(e)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

func (b *Buffer) currentLastContinuousLocked() int32 {
	if !b.hasLastContinuous {
		return -1
	}
	return int32(b.lastContinuousPID)
}

func (b *Buffer) superframeSizeLocked(pid uint16) (int, av.ContentType) {
	size := 0
	contentType := av.ContentTypeUnspecified
	for _, e := range b.byPicture[pid] {
		size += len(e.frame.Payload)
		if e.frame.FrameType == FrameTypeKey {
			contentType = e.frame.ContentType
		}
	}
	return size, contentType
}
