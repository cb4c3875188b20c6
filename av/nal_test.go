// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func annexB(nals ...[]byte) []byte {
	var out []byte
	for _, nal := range nals {
		out = append(out, 0, 0, 1)
		out = append(out, nal...)
	}
	return out
}

func TestIsH264KeyFrame(t *testing.T) {
	sps := []byte{NalSps, 0x42, 0x00, 0x1e}
	pps := []byte{NalPps, 0xce, 0x3c, 0x80}
	idr := []byte{NalIdrSlice, 0x88, 0x84, 0x00}
	nonIdr := []byte{NalSlice, 0x88, 0x84, 0x00}

	assert.True(t, IsH264KeyFrame(annexB(sps, pps, idr)), "sps+pps+idr is a key frame")
	assert.True(t, IsH264KeyFrame(annexB(idr)), "a bare idr slice is a key frame")
	assert.False(t, IsH264KeyFrame(annexB(sps, pps)), "sps+pps without a following idr is not a key frame")
	assert.False(t, IsH264KeyFrame(annexB(nonIdr)), "a non-idr slice is not a key frame")
	assert.False(t, IsH264KeyFrame(nil))
}
