// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av

// H.264 NAL unit type codes, Table 7-1 of T-REC-H.264. The core itself
// never inspects payload bytes; these back IsH264KeyFrame, an optional
// codec-specific detector a caller may hand to ingest.NewReceiver.
const (
	NalSlice     = 1
	NalIdrSlice  = 5
	NalSps       = 7
	NalPps       = 8
	nalTypeMask  = 0x1F
	startCodeLen = 3
)

// IsH264KeyFrame reports whether payload, an Annex-B bytestream (one or
// more 00 00 01-prefixed NAL units), contains an IDR slice. A frame
// carrying only an SPS/PPS pair without a following IDR slice is not
// considered a key frame.
func IsH264KeyFrame(payload []byte) bool {
	for _, nal := range splitAnnexB(payload) {
		if len(nal) == 0 {
			continue
		}
		if nal[0]&nalTypeMask == NalIdrSlice {
			return true
		}
	}
	return false
}

// splitAnnexB slices payload into its constituent NAL units, stripping
// the 00 00 01 start codes. It tolerates the 4-byte 00 00 00 01 form by
// treating the leading zero as part of the previous unit's padding.
func splitAnnexB(payload []byte) [][]byte {
	var units [][]byte
	start := -1
	for i := 0; i+startCodeLen <= len(payload); i++ {
		if payload[i] == 0 && payload[i+1] == 0 && payload[i+2] == 1 {
			if start >= 0 {
				units = append(units, payload[start:i])
			}
			start = i + startCodeLen
			i += startCodeLen - 1
		}
	}
	if start >= 0 && start <= len(payload) {
		units = append(units, payload[start:])
	}
	return units
}
