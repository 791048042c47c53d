/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config reads the rtcored INI configuration: heap layout
// overrides, the safepoint catalog location, supervisor crash handling,
// and logging, via the same gcfg dialect the rest of the stack uses.
package config

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/gravwell/gcfg"

	"github.com/gravwell/rtcore/log"
)

const maxConfigSize int64 = 1024 * 1024 * 4

const (
	defaultLogLevel      = `WARN`
	defaultNurseryFrac   = 8
	defaultInitialHeapMB = 8
	defaultMaxHeapMB     = 8192
)

type globalCfg struct {
	Log_File          string
	Log_Level         string
	Initial_Heap_MB   int
	Max_Heap_MB       int
	Nursery_Fraction  int
	Safepoint_Catalog string
	Crash_Log         string
}

type errHandlerCfg struct {
	Exec string
}

// fileType is the raw gcfg-decoded shape; Config is the validated,
// defaulted view callers actually use.
type fileType struct {
	Global        globalCfg
	Error_Handler errHandlerCfg
}

// Config is the runtime's resolved configuration.
type Config struct {
	LogFile          string
	LogLevel         string
	InitialHeapBytes uint64
	MaxHeapBytes     uint64
	NurseryFraction  uint64
	SafepointCatalog string
	CrashLogPath     string
	CrashHandler     string
}

// Load reads and validates path, returning an error for anything gcfg
// can't parse or that fails validation. The size cap mirrors the
// teacher's sanity check against pathological config files.
func Load(path string) (Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer fin.Close()
	return loadFrom(fin)
}

func loadFrom(r io.Reader) (Config, error) {
	lr := io.LimitReader(r, maxConfigSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return Config{}, err
	}
	if int64(len(data)) > maxConfigSize {
		return Config{}, errors.New("config: file far too large")
	}

	var ft fileType
	if err := gcfg.ReadStringInto(&ft, string(data)); err != nil {
		return Config{}, err
	}

	c := ft.resolve()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (ft fileType) resolve() Config {
	c := Config{
		LogFile:          ft.Global.Log_File,
		LogLevel:         strings.TrimSpace(ft.Global.Log_Level),
		SafepointCatalog: ft.Global.Safepoint_Catalog,
		CrashLogPath:     ft.Global.Crash_Log,
		CrashHandler:     ft.Error_Handler.Exec,
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	initMB := ft.Global.Initial_Heap_MB
	if initMB <= 0 {
		initMB = defaultInitialHeapMB
	}
	maxMB := ft.Global.Max_Heap_MB
	if maxMB <= 0 {
		maxMB = defaultMaxHeapMB
	}
	frac := ft.Global.Nursery_Fraction
	if frac <= 0 {
		frac = defaultNurseryFrac
	}

	c.InitialHeapBytes = uint64(initMB) * 1024 * 1024
	c.MaxHeapBytes = uint64(maxMB) * 1024 * 1024
	c.NurseryFraction = uint64(frac)
	return c
}

func (c Config) validate() error {
	if c.InitialHeapBytes == 0 || c.MaxHeapBytes == 0 {
		return errors.New("config: heap sizes must be positive")
	}
	if c.InitialHeapBytes > c.MaxHeapBytes {
		return errors.New("config: initial heap exceeds max heap")
	}
	if c.NurseryFraction == 0 {
		return errors.New("config: nursery fraction must be positive")
	}
	if _, err := log.LevelFromString(c.LogLevel); err != nil {
		return err
	}
	if c.CrashHandler != "" {
		if err := checkExecutable(firstField(c.CrashHandler)); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger builds the *log.Logger this config describes: a discard
// logger if no log file is set, otherwise a file-backed logger at the
// configured level.
func (c Config) GetLogger() (*log.Logger, error) {
	if c.LogFile == "" {
		return log.NewDiscardLogger(), nil
	}
	ll, err := log.LevelFromString(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if ll == log.OFF {
		return log.NewDiscardLogger(), nil
	}
	l, err := log.NewFile(c.LogFile)
	if err != nil {
		return nil, err
	}
	if err := l.SetLevel(ll); err != nil {
		return nil, err
	}
	return l, nil
}

func firstField(s string) string {
	flds := strings.Fields(strings.TrimSpace(s))
	if len(flds) > 0 {
		return flds[0]
	}
	return ""
}

func checkExecutable(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errors.New("config: " + p + " is a directory")
	}
	if fi.Mode()&0o111 == 0 {
		return errors.New("config: " + p + " is not executable")
	}
	return nil
}
