// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"os"

	"github.com/cnotch/xlog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the global logger: console output always, plus
// an optional rotated file sink.
type LogConfig struct {
	// Level is the minimum severity that reaches either sink.
	Level xlog.Level `json:"level"`

	// ToFile turns on the rotated file sink alongside the console one.
	ToFile bool `json:"tofile"`

	// Filename is the rotated log file's path.
	Filename string `json:"filename"`

	// MaxSize is the file sink's rotation threshold, in megabytes.
	MaxSize int `json:"maxsize"`

	// MaxDays is how many days a rotated file is kept before deletion.
	MaxDays int `json:"maxdays"`

	// MaxBackups caps how many rotated files are kept regardless of
	// age; whichever of MaxDays/MaxBackups is stricter wins.
	MaxBackups int `json:"maxbackups"`

	// Compress gzips rotated files once they roll over.
	Compress bool `json:"compress"`
}

func (c *LogConfig) initFlags() {
	flag.Var(&c.Level, "log-level",
		"Set the log level to output")
	flag.BoolVar(&c.ToFile, "log-tofile", false,
		"Determines if logs should be saved to file")
	flag.StringVar(&c.Filename, "log-filename",
		"./logs/"+Name+".log", "Set the file to write logs to")
	flag.IntVar(&c.MaxSize, "log-maxsize", 20,
		"Set the maximum size in megabytes of the log file before it gets rotated")
	flag.IntVar(&c.MaxDays, "log-maxdays", 7,
		"Set the maximum days of old log files to retain")
	flag.IntVar(&c.MaxBackups, "log-maxbackups", 14,
		"Set the maximum number of old log files to retain")
	flag.BoolVar(&c.Compress, "log-compress", false,
		"Determines if the log files should be compressed")
}

// initLogger installs c as the process-wide logger configuration.
func (c *LogConfig) initLogger() {
	console := xlog.NewCore(xlog.NewConsoleEncoder(xlog.LstdFlags|xlog.Lmicroseconds|xlog.Llongfile), xlog.Lock(os.Stderr), c.Level)

	if !c.ToFile {
		xlog.ReplaceGlobal(xlog.New(console, xlog.AddCaller()))
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   c.Filename,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxDays,
		LocalTime:  true,
		Compress:   c.Compress,
	}
	file := xlog.NewCore(xlog.NewJSONEncoder(xlog.Llongfile), rotated, c.Level)
	xlog.ReplaceGlobal(xlog.New(xlog.NewTee(console, file), xlog.AddCaller()))
}
