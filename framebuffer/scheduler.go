// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framebuffer

import (
	"sort"
	"time"
)

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// NextFrame blocks until a decodable superframe is available, maxWait
// elapses, or Stop is called. When keyframeRequired is set, every
// non-keyframe picture encountered is discarded rather than delivered,
// matching the "drop until next keyframe" recovery path.
func (b *Buffer) NextFrame(maxWait time.Duration, keyframeRequired bool) (*Superframe, error) {
	deadline := time.Now().Add(maxWait)

	b.mu.Lock()
	for {
		if b.stopped {
			b.mu.Unlock()
			return nil, ErrStopped
		}

		pid, ready, isKey := b.selectReadyPictureLocked()
		if !ready {
			notify := b.notify
			remaining := time.Until(deadline)
			if remaining <= 0 {
				b.mu.Unlock()
				return nil, ErrTimedOut
			}
			b.mu.Unlock()

			timer := time.NewTimer(remaining)
			select {
			case <-notify:
				timer.Stop()
			case <-timer.C:
			}

			b.mu.Lock()
			continue
		}

		if keyframeRequired && !isKey {
			b.discardPictureLocked(pid)
			continue
		}

		renderMs := b.renderTimeForPictureLocked(pid)
		now := nowMs()
		waitMs := renderMs - now
		if b.timing != nil {
			waitMs = b.timing.MaxWait(renderMs, now)
		}
		if waitMs > 0 {
			notify := b.notify
			wait := time.Duration(waitMs) * time.Millisecond
			if remaining := time.Until(deadline); wait > remaining {
				wait = remaining
			}
			b.mu.Unlock()

			timer := time.NewTimer(wait)
			select {
			case <-notify:
				timer.Stop()
				b.mu.Lock()
				continue
			case <-timer.C:
			}

			b.mu.Lock()
			if time.Now().After(deadline) {
				b.mu.Unlock()
				return nil, ErrTimedOut
			}
			continue
		}

		sf := b.assembleAndPopLocked(pid)
		b.mu.Unlock()
		return sf, nil
	}
}

// selectReadyPictureLocked returns the decodable picture with the
// smallest (render_time, picture_id) in wrap-aware order, matching the
// delivery ordering NextFrame must preserve across calls.
func (b *Buffer) selectReadyPictureLocked() (pid uint16, ready bool, isKey bool) {
	haveBest := false
	var bestPid uint16
	var bestIsKey bool
	var bestRenderMs int64

	for p, layers := range b.byPicture {
		if !b.pictureDecodableLocked(layers) {
			continue
		}
		isK := layers[0].frame.FrameType == FrameTypeKey
		renderMs := b.renderTimeForPictureLocked(p)

		if !haveBest || renderMs < bestRenderMs || (renderMs == bestRenderMs && AheadOfU16(bestPid, p)) {
			bestPid, haveBest, bestIsKey, bestRenderMs = p, true, isK, renderMs
		}
	}
	return bestPid, haveBest, bestIsKey
}

func (b *Buffer) pictureDecodableLocked(layers []*entry) bool {
	var last *entry
	for _, e := range layers {
		if e.popped {
			return false
		}
		if e.frame.IsLastSpatialLayer {
			last = e
		}
	}
	if last == nil {
		return false
	}
	for sl := uint8(0); sl <= last.frame.SpatialLayer; sl++ {
		e, ok := b.entries[layerKey{last.frame.PictureID, sl}]
		if !ok || !e.continuous || e.numMissingDecodable != 0 {
			return false
		}
	}
	return true
}

func (b *Buffer) renderTimeForPictureLocked(pid uint16) int64 {
	for _, e := range b.byPicture[pid] {
		if e.frame.IsLastSpatialLayer {
			return e.frame.RenderTimeMs
		}
	}
	return nowMs()
}

// discardPictureLocked drops a picture without delivering it to the
// decoder, used while waiting out a keyframe request. The entries are
// removed from the store rather than marked popped: pidAllPoppedLocked
// must keep reporting pid as outstanding, or a dependant would see its
// reference as already decoded and become falsely decodable even
// though NextFrame never actually returned it.
func (b *Buffer) discardPictureLocked(pid uint16) {
	for _, e := range b.byPicture[pid] {
		delete(b.entries, layerKey{pid, e.frame.SpatialLayer})
	}
	delete(b.byPicture, pid)
	b.discardedCount++
	b.stats.OnDiscardedPacketsUpdated(b.discardedCount)
	b.updateDecodabilityLocked()
	b.signalLocked()
}

// assembleAndPopLocked concatenates every spatial layer of pid, in
// layer order, into one decode unit and marks its entries popped; they
// stay in the store until pruneStaleLocked reclaims them.
func (b *Buffer) assembleAndPopLocked(pid uint16) *Superframe {
	layers := append([]*entry(nil), b.byPicture[pid]...)
	sort.Slice(layers, func(i, j int) bool {
		return layers[i].frame.SpatialLayer < layers[j].frame.SpatialLayer
	})

	sf := &Superframe{PictureID: pid}
	var last *entry
	for _, e := range layers {
		f := e.frame
		sf.Payload = append(sf.Payload, f.Payload...)
		sf.LayerSizes = append(sf.LayerSizes, len(f.Payload))
		sf.PacketInfos = append(sf.PacketInfos, f.PacketInfos...)
		if f.DelayedByRetransmission {
			sf.DelayedByRetransmission = true
		}
		if f.FrameType == FrameTypeKey {
			sf.FrameType = FrameTypeKey
		}
		e.popped = true
		last = e
	}

	f := last.frame
	sf.RTPTimestamp = f.RTPTimestamp
	sf.RenderTimeMs = f.RenderTimeMs
	sf.SpatialIndex = f.SpatialLayer
	sf.ReceivedTimeMs = f.ReceivedTimeMs
	sf.ColorSpace = f.ColorSpace
	sf.Rotation = f.Rotation
	sf.ContentType = f.ContentType
	sf.SendTiming = f.SendTiming
	sf.NTPTimeMs = f.NTPTimeMs
	sf.PlayoutDelay = f.PlayoutDelay

	b.hasLastDecoded = true
	b.lastDecodedPID = pid
	// This watermark tracks the highest RTP timestamp handed to the
	// decoder so far, not merely the most recently popped one: delivery
	// order follows (render_time, picture_id), so an older-timestamp
	// picture can legitimately pop after a newer one and must not push
	// the watermark backward.
	if !b.hasHighestDecodedRTP || AheadOfU32(f.RTPTimestamp, b.highestDecodedRTP) {
		b.hasHighestDecodedRTP = true
		b.highestDecodedRTP = f.RTPTimestamp
	}

	b.updateDecodabilityLocked()
	b.pruneStaleLocked()
	b.signalLocked()
	return sf
}

// updateDecodabilityLocked recomputes numMissingDecodable for every
// live continuous entry whose dependencies aren't already satisfied.
// Once numMissingDecodable reaches zero it is never recomputed again:
// satisfaction is monotonic (a reference that has been popped stays
// popped), and re-deriving it later would wrongly regress to "missing"
// once pruneStaleLocked has reclaimed the now-delivered ancestor it
// depended on.
func (b *Buffer) updateDecodabilityLocked() {
	for _, e := range b.entries {
		if e.continuous && !e.popped && e.numMissingDecodable != 0 {
			e.numMissingDecodable = b.missingDecodableLocked(e)
		}
	}
}

// pruneStaleLocked reclaims pictures that have been fully popped and
// now sit strictly behind the last delivered picture id in wrap order:
// once a newer picture has been delivered, nothing still pending can
// gain a fresh dependency on an older, already-delivered one, so its
// slot can be freed instead of counting against capacity forever.
func (b *Buffer) pruneStaleLocked() {
	if !b.hasLastDecoded {
		return
	}
	for pid, layers := range b.byPicture {
		if pid == b.lastDecodedPID || !AheadOfU16(b.lastDecodedPID, pid) {
			continue
		}
		if !b.pidAllPoppedLocked(pid) {
			continue
		}
		for _, e := range layers {
			delete(b.entries, layerKey{pid, e.frame.SpatialLayer})
		}
		delete(b.byPicture, pid)
	}
}
