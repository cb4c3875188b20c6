// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framebuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyFrame(pid uint16, renderMs int64, payload int) Frame {
	return Frame{
		PictureID:          pid,
		RenderTimeMs:       renderMs,
		FrameType:          FrameTypeKey,
		IsLastSpatialLayer: true,
		Payload:            make([]byte, payload),
	}
}

func deltaFrame(pid uint16, renderMs int64, refs []uint16, payload int) Frame {
	return Frame{
		PictureID:          pid,
		RenderTimeMs:       renderMs,
		FrameType:          FrameTypeDelta,
		IsLastSpatialLayer: true,
		References:         refs,
		Payload:            make([]byte, payload),
	}
}

// a picture missing a required reference never becomes continuous,
// but later pictures whose own references are satisfied still are.
func TestMissingFrame(t *testing.T) {
	b := New(600, nil, nil, nil)

	last := b.Insert(keyFrame(10, 0, 1))
	assert.EqualValues(t, 10, last)

	last = b.Insert(deltaFrame(12, 0, []uint16{10}, 1))
	assert.EqualValues(t, 12, last)

	last = b.Insert(deltaFrame(13, 0, []uint16{11, 12}, 1))
	assert.EqualValues(t, 12, last, "pid 13 is not continuous, last-continuous stays at 12")

	sf, err := b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 10, sf.PictureID)

	sf, err = b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 12, sf.PictureID)

	_, err = b.NextFrame(10*time.Millisecond, false)
	assert.Equal(t, ErrTimedOut, err)
}

// enhancement-layer pictures whose cross-reference never arrives time
// out forever while the independent base-layer chain keeps decoding,
// the same drop-on-missing-reference path at a larger scale.
func TestDropTemporalLayerOnMissingReference(t *testing.T) {
	b := New(600, nil, nil, nil)

	base := []uint16{100, 102, 104, 106, 108}
	prevBase := uint16(0)
	for i, pid := range base {
		if i == 0 {
			b.Insert(keyFrame(pid, 0, 1))
		} else {
			b.Insert(deltaFrame(pid, 0, []uint16{prevBase}, 1))
		}
		prevBase = pid
	}

	enhancement := []uint16{103, 105, 107, 109}
	for _, pid := range enhancement {
		// References picture id 99, which is never inserted.
		b.Insert(deltaFrame(pid, 0, []uint16{99}, 1))
	}

	for _, want := range base {
		sf, err := b.NextFrame(10*time.Millisecond, false)
		require.NoError(t, err)
		assert.EqualValues(t, want, sf.PictureID)
	}

	for range enhancement {
		_, err := b.NextFrame(10*time.Millisecond, false)
		assert.Equal(t, ErrTimedOut, err)
	}
}

// a keyframe re-seeds a store that is full of undecoded pictures.
func TestKeyframeClearsFullBuffer(t *testing.T) {
	b := New(600, nil, nil, nil)

	prev := uint16(0)
	for i := 0; i < 600; i++ {
		pid := uint16(i)
		var f Frame
		if i == 0 {
			f = keyFrame(pid, 0, 1)
		} else {
			f = deltaFrame(pid, 0, []uint16{prev}, 1)
		}
		last := b.Insert(f)
		assert.EqualValues(t, pid, last)
		prev = pid
	}

	// Store is now exactly at capacity; a non-keyframe insert is rejected.
	rejected := b.Insert(deltaFrame(600, 0, []uint16{599}, 1))
	assert.EqualValues(t, -1, rejected)

	last := b.Insert(keyFrame(601, 0, 1))
	assert.EqualValues(t, 601, last)

	sf, err := b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 601, sf.PictureID)
}

// delivered pictures are reclaimed once they fall behind the last
// decoded picture id, so a steady insert-then-pop stream never runs
// into capacity even though it churns through far more distinct
// picture ids than the capacity would otherwise allow.
func TestDeliveredPicturesAreReclaimed(t *testing.T) {
	b := New(2, nil, nil, nil)

	last := b.Insert(keyFrame(0, 0, 1))
	assert.EqualValues(t, 0, last)
	sf, err := b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sf.PictureID)

	prev := uint16(0)
	for pid := uint16(1); pid < 50; pid++ {
		last = b.Insert(deltaFrame(pid, 0, []uint16{prev}, 1))
		require.NotEqual(t, int32(-1), last, "picture %d rejected, capacity was never reclaimed", pid)

		sf, err = b.NextFrame(10*time.Millisecond, false)
		require.NoError(t, err)
		assert.EqualValues(t, pid, sf.PictureID)
		prev = pid
	}
}

// spatial layers of one picture id concatenate into one decode unit.
func TestCombineFramesToSuperframe(t *testing.T) {
	b := New(600, nil, nil, nil)

	const s = 100
	b.Insert(Frame{
		PictureID:    5,
		SpatialLayer: 0,
		RenderTimeMs: 0,
		FrameType:    FrameTypeKey,
		Payload:      make([]byte, s),
	})
	b.Insert(Frame{
		PictureID:           5,
		SpatialLayer:        1,
		RenderTimeMs:        0,
		FrameType:           FrameTypeKey,
		IsLastSpatialLayer:  true,
		InterLayerPredicted: true,
		Payload:             make([]byte, 2*s),
	})

	sf, err := b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, sf.PictureID)
	assert.Equal(t, 3*s, len(sf.Payload))
	assert.EqualValues(t, 1, sf.SpatialIndex)
	assert.Equal(t, []int{s, 2 * s}, sf.LayerSizes)
	assert.Equal(t, s, sf.SpatialLayerSize(0))
	assert.Equal(t, 2*s, sf.SpatialLayerSize(1))
}

func TestDontDecodeOlderTimestamp(t *testing.T) {
	b := New(600, nil, nil, nil)

	b.Insert(keyFrame(2, 0, 1))
	f1 := keyFrame(1, 0, 1)
	f1.RTPTimestamp = 2
	b.Insert(f1)

	sf, err := b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sf.PictureID, "newer RTP timestamp wins")

	sf, err = b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sf.PictureID)

	f3 := keyFrame(3, 0, 1)
	f3.RTPTimestamp = 1
	rejected := b.Insert(f3)
	assert.EqualValues(t, -1, rejected, "rtp timestamp older than last decoded is rejected on insert")

	f4 := keyFrame(4, 0, 1)
	f4.RTPTimestamp = 5
	b.Insert(f4)

	sf, err = b.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, sf.PictureID)
}

func TestDuplicateInsertIsNoop(t *testing.T) {
	b := New(600, nil, nil, nil)

	first := b.Insert(keyFrame(1, 0, 1))
	dup := b.Insert(keyFrame(1, 0, 1))
	assert.Equal(t, first, dup)
	assert.Len(t, b.byPicture, 1)
}

func TestStopUnblocksWaiters(t *testing.T) {
	b := New(600, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := b.NextFrame(time.Second, false)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Stop()

	select {
	case err := <-done:
		assert.Equal(t, ErrStopped, err)
	case <-time.After(time.Second):
		t.Fatal("NextFrame did not unblock after Stop")
	}
}

func TestKeyframeRequiredDropsDeltaFrames(t *testing.T) {
	b := New(600, nil, nil, nil)

	b.Insert(keyFrame(1, 0, 1))
	b.Insert(deltaFrame(2, 0, []uint16{1}, 1))
	b.Insert(keyFrame(3, 0, 1))

	sf, err := b.NextFrame(10*time.Millisecond, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sf.PictureID)

	sf, err = b.NextFrame(10*time.Millisecond, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sf.PictureID, "delta frame 2 is discarded while a keyframe is required")
}

// A picture that references a discarded picture must never become
// decodable: discarding must not look like delivery to a dependant.
func TestDiscardedPictureDoesNotUnblockDependants(t *testing.T) {
	b := New(600, nil, nil, nil)

	b.Insert(keyFrame(1, 0, 1))
	b.Insert(deltaFrame(2, 0, []uint16{1}, 1))
	b.Insert(deltaFrame(4, 0, []uint16{2}, 1))
	b.Insert(keyFrame(3, 0, 1))

	sf, err := b.NextFrame(10*time.Millisecond, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sf.PictureID)

	sf, err = b.NextFrame(10*time.Millisecond, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sf.PictureID, "delta frame 2 is discarded while a keyframe is required")

	_, err = b.NextFrame(10*time.Millisecond, false)
	assert.Equal(t, ErrTimedOut, err, "pid 4 references discarded pid 2 and must never become decodable")
}
