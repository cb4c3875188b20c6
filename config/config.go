// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
)

// config 服务配置
type config struct {
	ListenAddr        string    `json:"listen"`              // RTP/UDP 接入地址
	DiagAddr          string    `json:"diag_addr"`           // 诊断 HTTP/WS 服务地址
	StoreCapacity     int       `json:"store_capacity"`      // 帧存储最多保留的 picture_id 数
	DecoderRingSize   int       `json:"decoder_ring_size"`   // 解码调度器 FrameInfo 环形缓冲大小
	ProtectionMode    string    `json:"protection_mode"`     // "nack" 或 "nackfec"
	InitialDelayMs    int64     `json:"initial_delay_ms"`    // 首帧渲染时间的初始延迟
	MinPlayoutDelayMs int64     `json:"min_playout_delay_ms"`
	RenderDelayMs     int64     `json:"render_delay_ms"`
	Profile           bool      `json:"profile"`
	Log               LogConfig `json:"log"`
}

func (c *config) initFlags() {
	flag.StringVar(&c.ListenAddr, "listen", ":5004", "Set the RTP/UDP listen address")
	flag.StringVar(&c.DiagAddr, "diag-listen", ":8080", "Set the diagnostics HTTP/WS listen address")
	flag.IntVar(&c.StoreCapacity, "store-capacity", 600,
		"Set the maximum number of distinct picture ids retained by the frame store")
	flag.IntVar(&c.DecoderRingSize, "decoder-ring-size", 32,
		"Set the size of the decode dispatcher's FrameInfo ring")
	flag.StringVar(&c.ProtectionMode, "protection-mode", "nack",
		"Set the protection mode: nack or nackfec")
	flag.Int64Var(&c.InitialDelayMs, "initial-delay-ms", 200,
		"Set the initial render delay before jitter has been observed")
	flag.Int64Var(&c.MinPlayoutDelayMs, "min-playout-delay-ms", 0,
		"Set the minimum playout delay floor")
	flag.Int64Var(&c.RenderDelayMs, "render-delay-ms", 10,
		"Set the fixed render-pipeline delay added on top of jitter")
	flag.BoolVar(&c.Profile, "pprof", false,
		"Determines if profile enabled")

	c.Log.initFlags()
}
