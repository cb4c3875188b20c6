// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"

	cfg "github.com/cnotch/loader"
	"github.com/cnotch/jbcore/timing"
	"github.com/cnotch/xlog"
)

// 服务名
const (
	Vendor  = "CAOHONGJU"
	Name    = "jbcore"
	Version = "V1.0.0"
)

var globalC *config

// InitConfig 初始化 Config：加载配置文件、环境变量、命令行参数，然后初始化日志。
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")

	globalC = new(config)
	globalC.initFlags()

	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		xlog.Panic(err.Error())
	}

	globalC.Log.initLogger()
}

// Addr RTP/UDP 侦听地址
func Addr() string {
	if globalC == nil {
		return ":5004"
	}
	return globalC.ListenAddr
}

// DiagAddr 诊断服务侦听地址
func DiagAddr() string {
	if globalC == nil {
		return ":8080"
	}
	return globalC.DiagAddr
}

// StoreCapacity 帧存储最多保留的 picture_id 数
func StoreCapacity() int {
	if globalC == nil || globalC.StoreCapacity <= 0 {
		return 600
	}
	return globalC.StoreCapacity
}

// DecoderRingSize 解码调度器 FrameInfo 环形缓冲大小
func DecoderRingSize() int {
	if globalC == nil || globalC.DecoderRingSize <= 0 {
		return 32
	}
	return globalC.DecoderRingSize
}

// ProtectionMode 保护模式
func ProtectionMode() timing.ProtectionMode {
	if globalC != nil && strings.EqualFold(globalC.ProtectionMode, "nackfec") {
		return timing.ProtectionModeNackFec
	}
	return timing.ProtectionModeNack
}

// InitialDelayMs 首帧渲染时间的初始延迟
func InitialDelayMs() int64 {
	if globalC == nil {
		return 200
	}
	return globalC.InitialDelayMs
}

// MinPlayoutDelayMs 最小播放延迟
func MinPlayoutDelayMs() int64 {
	if globalC == nil {
		return 0
	}
	return globalC.MinPlayoutDelayMs
}

// RenderDelayMs 固定渲染管线延迟
func RenderDelayMs() int64 {
	if globalC == nil {
		return 10
	}
	return globalC.RenderDelayMs
}

// Profile 是否启动 Http Profile
func Profile() bool {
	if globalC == nil {
		return false
	}
	return globalC.Profile
}
