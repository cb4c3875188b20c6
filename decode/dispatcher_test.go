// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decode

import (
	"errors"
	"testing"

	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/jbcore/framebuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoder struct {
	cb     Callback
	status Status
	err    error
	name   string
}

func (f *fakeDecoder) InitDecode(Settings, int) error { return nil }

func (f *fakeDecoder) Decode(payload []byte, missingFrame bool, renderTimeMs int64) (Status, error) {
	return f.status, f.err
}

func (f *fakeDecoder) RegisterDecodeCompleteCallback(cb Callback) error {
	f.cb = cb
	return nil
}

func (f *fakeDecoder) PrefersLateDecoding() bool { return false }
func (f *fakeDecoder) ImplementationName() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

type fakeReceiveCallback struct {
	frames []DecodedFrame
	impls  []string
}

func (r *fakeReceiveCallback) FrameToRender(f DecodedFrame) error {
	r.frames = append(r.frames, f)
	return nil
}

func (r *fakeReceiveCallback) OnDecoderImplementationName(name string) {
	r.impls = append(r.impls, name)
}

func TestSettingsFromVideoMeta(t *testing.T) {
	got := SettingsFromVideoMeta(av.VideoMeta{Codec: "H264", Width: 1280, Height: 720, FrameRate: 30})
	assert.Equal(t, Settings{Codec: "H264", Width: 1280, Height: 720}, got)
}

func TestDispatcherDecodeThenOnDecoded(t *testing.T) {
	dec := &fakeDecoder{status: DecodeOutputPending}
	recv := &fakeReceiveCallback{}
	d := NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	sf := &framebuffer.Superframe{
		PictureID:    1,
		RTPTimestamp: 90000,
		RenderTimeMs: 1234,
		FrameType:    framebuffer.FrameTypeKey,
		Payload:      []byte("payload"),
		ContentType:  av.ContentTypeScreenshare,
	}

	status, err := d.Decode(sf, 1000)
	require.NoError(t, err)
	assert.Equal(t, DecodeOutputPending, status)
	assert.Len(t, recv.frames, 0, "no output yet, decoder hasn't called back")

	dec.cb.OnDecoded(sf.RTPTimestamp, []byte("decoded"), 20)

	require.Len(t, recv.frames, 1)
	got := recv.frames[0]
	assert.Equal(t, sf.RTPTimestamp, got.RTPTimestamp)
	assert.Equal(t, int64(1234), got.RenderTimeMs)
	assert.Equal(t, int64(20), got.DecodeTimeMs)
	assert.Equal(t, av.ContentTypeScreenshare, got.ContentType)
	assert.Equal(t, []string{"fake"}, recv.impls)
}

func TestDispatcherDeltaFrameInheritsKeyframeContentType(t *testing.T) {
	dec := &fakeDecoder{status: DecodeOutputPending}
	recv := &fakeReceiveCallback{}
	d := NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	key := &framebuffer.Superframe{RTPTimestamp: 1, FrameType: framebuffer.FrameTypeKey, ContentType: av.ContentTypeScreenshare, Payload: []byte{1}}
	_, err := d.Decode(key, 0)
	require.NoError(t, err)
	dec.cb.OnDecoded(1, nil, 5)

	delta := &framebuffer.Superframe{RTPTimestamp: 2, FrameType: framebuffer.FrameTypeDelta, Payload: []byte{1}}
	_, err = d.Decode(delta, 0)
	require.NoError(t, err)
	dec.cb.OnDecoded(2, nil, 5)

	require.Len(t, recv.frames, 2)
	assert.Equal(t, av.ContentTypeScreenshare, recv.frames[1].ContentType, "delta frame inherits the last keyframe's content type")
}

func TestDispatcherReportsImplementationNameOnlyOnChange(t *testing.T) {
	dec := &fakeDecoder{status: DecodeNoOutput, name: "fake-a"}
	recv := &fakeReceiveCallback{}
	d := NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	for _, ts := range []uint32{1, 2, 3} {
		_, err := d.Decode(&framebuffer.Superframe{RTPTimestamp: ts, Payload: []byte{1}}, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"fake-a"}, recv.impls, "unchanged name reported once, not once per decode")

	dec.name = "fake-b"
	_, err := d.Decode(&framebuffer.Superframe{RTPTimestamp: 4, Payload: []byte{1}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"fake-a", "fake-b"}, recv.impls, "a changed name is reported again")
}

func TestDispatcherNoOutputPopsSlotImmediately(t *testing.T) {
	dec := &fakeDecoder{status: DecodeNoOutput}
	recv := &fakeReceiveCallback{}
	d := NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	sf := &framebuffer.Superframe{RTPTimestamp: 7, Payload: []byte{1}}
	status, err := d.Decode(sf, 0)
	require.NoError(t, err)
	assert.Equal(t, DecodeNoOutput, status)

	// A callback for a timestamp already popped is treated as unknown.
	dec.cb.OnDecoded(7, nil, 1)
	assert.Len(t, recv.frames, 0)
}

func TestDispatcherDecodeErrorPopsSlot(t *testing.T) {
	dec := &fakeDecoder{status: -1, err: errors.New("bitstream error")}
	recv := &fakeReceiveCallback{}
	d := NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	sf := &framebuffer.Superframe{RTPTimestamp: 9, Payload: []byte{1}}
	_, err := d.Decode(sf, 0)
	assert.Error(t, err)

	dec.cb.OnDecoded(9, nil, 1)
	assert.Len(t, recv.frames, 0)
}

func TestDispatcherUnknownTimestampIsDiscarded(t *testing.T) {
	dec := &fakeDecoder{status: DecodeOutputPending}
	recv := &fakeReceiveCallback{}
	_ = NewDispatcher(dec, recv, 4, nil, nil, nil, 0)

	dec.cb.OnDecoded(999, nil, 1)
	assert.Len(t, recv.frames, 0)
}

func TestFrameInfoRingEvictsOldest(t *testing.T) {
	r := newFrameInfoRing(2)
	r.add(1, &frameInfo{})
	r.add(2, &frameInfo{})

	firstEvictedTs, _, didEvict := r.add(3, &frameInfo{})
	require.True(t, didEvict)
	assert.EqualValues(t, 1, firstEvictedTs)

	secondEvictedTs, _, didEvict := r.add(4, &frameInfo{})
	require.True(t, didEvict)
	assert.EqualValues(t, 2, secondEvictedTs)

	assert.Nil(t, r.pop(1))
	assert.NotNil(t, r.pop(3))
}
