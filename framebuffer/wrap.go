// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framebuffer

// AheadOfU16 reports whether a is ahead of b in wrap-aware picture-id
// order, treating half of the 16-bit range as the wraparound boundary.
func AheadOfU16(a, b uint16) bool {
	return a != b && uint16(a-b) < 1<<15
}

// AheadOfU32 reports whether a is ahead of b in wrap-aware RTP
// timestamp order.
func AheadOfU32(a, b uint32) bool {
	return a != b && uint32(a-b) < 1<<31
}
