// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package weakhash provides the rolling Adler-32 checksum used to scan
// candidate files for blocks that can be reused verbatim instead of
// downloaded. The checksum is weak by design: collisions are expected
// and are resolved by a strong hash one layer up (see package checksum).
package weakhash

import (
	"github.com/chmduquesne/rollinghash/adler32"
)

// Base and NMax are part of the wire contract: the server computes block
// checksums with the same constants, so changing them would break every
// checksum blob already served.
const (
	Base    = 65521
	NMax    = 5552
	Initial = 1
)

// Engine computes a block's Adler-32 checksum and rolls it forward one
// byte at a time without rereading the whole window. It wraps the
// rollinghash library's Adler-32 implementation, which already
// maintains the window internally; the original C client hand-rolled
// the same algorithm in terms of lo/hi halves (see RollOne below).
type Engine struct {
	h *adler32.Adler32
}

// New returns an Engine with an empty window. Call Reset to load the
// first block before rolling.
func New() *Engine {
	return &Engine{h: adler32.New()}
}

// Reset (re-)initializes the engine's window to block and returns its
// Adler-32 checksum. block is retained by reference by the underlying
// rolling-hash window; the caller must not mutate it while rolling.
func (e *Engine) Reset(block []byte) uint32 {
	e.h.Reset()
	e.h.Write(block)
	return e.h.Sum32()
}

// Roll slides the window forward by one byte: in enters at the trailing
// edge, and the byte that falls off the leading edge is tracked
// internally by the rolling-hash library (it was handed the whole
// window in Reset).
func (e *Engine) Roll(in byte) uint32 {
	e.h.Roll(in)
	return e.h.Sum32()
}

// Sum32 returns the current window's checksum without modifying it.
func (e *Engine) Sum32() uint32 {
	return e.h.Sum32()
}

// RollOne implements spec's roll formula directly against the raw
// adler/sum halves, independent of the rollinghash library. Tests use
// it to cross-check the library's rolling output against the
// documented math, and it's the fallback if a caller ever needs to
// roll without keeping the library's window object around.
func RollOne(adler uint32, out, in byte, blocklen uint32) uint32 {
	lo := adler & 0xffff
	hi := adler >> 16
	lo = (lo + Base + uint32(in) - uint32(out)) % Base
	hi = (hi + Base*Base - blocklen*uint32(out) - Initial + lo) % Base
	return lo | (hi << 16)
}

// Block computes a fresh (non-rolling) Adler-32 over buf, matching the
// reference server-side implementation. Used to seed a window and, in
// tests, to verify that rolling never drifts from a from-scratch
// recompute over the same bytes.
func Block(buf []byte) uint32 {
	return New().Reset(buf)
}
