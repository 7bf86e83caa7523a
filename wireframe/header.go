// File: wireframe/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wireframe implements the fixed-layout message header the core
// runtime consumes but does not otherwise define (spec §6): magic,
// version, type, priority, sequence id, timestamp, payload size,
// checksum, sender/receiver ids, flags, reserved. The payload checksum
// (a sum of the payload bytes) is a sum-modulo-2^32 framing sanity check, not a security
// mechanism (spec §9).

package wireframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-ws/pool"
)

// scratchPool recycles encode scratch buffers so a high-rate sender does
// not allocate a fresh []byte per frame.
var scratchPool = pool.NewSyncPool(func() *[]byte {
	b := make([]byte, 0, 4096)
	return &b
})

// HeaderMagic identifies a well-formed frame. Decode rejects any header
// that does not start with this value.
const HeaderMagic uint32 = 0x484C4457 // "HLDW"

// HeaderVersion is the version this codec emits; Decode accepts any
// version >= 1 (spec §6 "version >= 1").
const HeaderVersion uint32 = 1

// HeaderSize is the fixed on-wire size of Header in bytes.
const HeaderSize = 4 + 4 + 4 + 1 + 4 + 8 + 4 + 4 + 32 + 32 + 4 + (3 * 4)

// idFieldSize is the fixed width of the zero-padded ASCII sender/receiver
// id fields.
const idFieldSize = 32

// Flag bits carried in Header.Flags.
const (
	FlagNone        uint32 = 0
	FlagCompressed  uint32 = 1 << 0 // payload is zstd-compressed (SPEC_FULL.md domain-stack wiring)
	FlagPriorityAck uint32 = 1 << 1 // sender requests a priority acknowledgement
)

// MessageType enumerates the header's type field. The core only needs to
// distinguish "does my event bus care about this", so the enum is small
// and open to extension by callers via raw uint32 values above these.
type MessageType uint32

const (
	MessageTypeData MessageType = iota
	MessageTypeControl
	MessageTypeHeartbeat
)

// Header is the decoded, in-memory form of the fixed-layout wire header.
type Header struct {
	Version    uint32
	Type       MessageType
	Priority   uint8
	SequenceID uint32
	Timestamp  time.Time
	PayloadSize uint32
	Checksum   uint32
	SenderID   string
	ReceiverID string
	Flags      uint32
}

// ErrShortBuffer is returned when a buffer is too small to hold a header.
var ErrShortBuffer = errors.New("wireframe: buffer too short for header")

// ErrProtocolInvalid covers magic, version, or checksum mismatches — spec
// §9's ProtocolInvalid condition: the message is dropped and an error
// counter bumped, but the transport itself is never torn down for this.
var ErrProtocolInvalid = errors.New("wireframe: protocol invalid")

// ErrPayloadTooLarge is returned when decoding a header whose declared
// payload size exceeds the caller-supplied maximum.
var ErrPayloadTooLarge = errors.New("wireframe: payload exceeds configured maximum")

// Checksum computes the spec's weak integrity value: a sum over payload
// bytes, modulo 2^32.
func Checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// Encode writes header and payload into a single contiguous wire frame.
// Checksum and PayloadSize are computed from payload and written
// regardless of what the caller set on h.
func Encode(h Header, payload []byte) ([]byte, error) {
	if len(h.SenderID) > idFieldSize || len(h.ReceiverID) > idFieldSize {
		return nil, fmt.Errorf("wireframe: encode: sender/receiver id exceeds %d bytes", idFieldSize)
	}
	out := make([]byte, HeaderSize+len(payload))
	encodeInto(out, h, payload)
	return out, nil
}

// EncodePooled behaves like Encode but writes directly into a buffer drawn
// from scratchPool, and returns a release func the caller must invoke once
// it is done with the returned slice. Intended for senders on a hot path
// (e.g. bus.Channel delivery) that would otherwise allocate one frame per
// message.
func EncodePooled(h Header, payload []byte) (frame []byte, release func(), err error) {
	if len(h.SenderID) > idFieldSize || len(h.ReceiverID) > idFieldSize {
		return nil, func() {}, fmt.Errorf("wireframe: encode: sender/receiver id exceeds %d bytes", idFieldSize)
	}
	scratch := scratchPool.Get()
	needed := HeaderSize + len(payload)
	if cap(*scratch) < needed {
		*scratch = make([]byte, needed)
	} else {
		*scratch = (*scratch)[:needed]
	}
	encodeInto(*scratch, h, payload)
	return *scratch, func() { scratchPool.Put(scratch) }, nil
}

// encodeInto writes h and payload into dst, which must be exactly
// HeaderSize+len(payload) bytes.
func encodeInto(dst []byte, h Header, payload []byte) {
	off := 0

	binary.BigEndian.PutUint32(dst[off:], HeaderMagic)
	off += 4
	version := h.Version
	if version == 0 {
		version = HeaderVersion
	}
	binary.BigEndian.PutUint32(dst[off:], version)
	off += 4
	binary.BigEndian.PutUint32(dst[off:], uint32(h.Type))
	off += 4
	dst[off] = h.Priority
	off++
	binary.BigEndian.PutUint32(dst[off:], h.SequenceID)
	off += 4
	ts := h.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	binary.BigEndian.PutUint64(dst[off:], uint64(ts.UnixMilli()))
	off += 8
	binary.BigEndian.PutUint32(dst[off:], uint32(len(payload)))
	off += 4
	binary.BigEndian.PutUint32(dst[off:], Checksum(payload))
	off += 4
	putZeroPaddedASCII(dst[off:off+idFieldSize], h.SenderID)
	off += idFieldSize
	putZeroPaddedASCII(dst[off:off+idFieldSize], h.ReceiverID)
	off += idFieldSize
	binary.BigEndian.PutUint32(dst[off:], h.Flags)
	off += 4
	// reserved: 3 zeroed u32 fields
	off += 3 * 4

	copy(dst[HeaderSize:], payload)
}

// Decode parses a wire frame, validating magic, version, payload size
// against maxPayload, and checksum (spec §6 "Validity"). On any
// violation it returns ErrProtocolInvalid or ErrPayloadTooLarge wrapped
// with context; callers drop the message and bump their error counter
// per spec §9, without tearing down the transport.
func Decode(raw []byte, maxPayload uint32) (Header, []byte, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, ErrShortBuffer
	}
	off := 0
	magic := binary.BigEndian.Uint32(raw[off:])
	off += 4
	if magic != HeaderMagic {
		return Header{}, nil, fmt.Errorf("%w: magic mismatch", ErrProtocolInvalid)
	}
	version := binary.BigEndian.Uint32(raw[off:])
	off += 4
	if version < 1 {
		return Header{}, nil, fmt.Errorf("%w: version %d < 1", ErrProtocolInvalid, version)
	}
	msgType := MessageType(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	priority := raw[off]
	off++
	seq := binary.BigEndian.Uint32(raw[off:])
	off += 4
	tsMillis := binary.BigEndian.Uint64(raw[off:])
	off += 8
	payloadSize := binary.BigEndian.Uint32(raw[off:])
	off += 4
	if maxPayload > 0 && payloadSize > maxPayload {
		return Header{}, nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, payloadSize, maxPayload)
	}
	checksum := binary.BigEndian.Uint32(raw[off:])
	off += 4
	senderID := stripZeroPad(raw[off : off+idFieldSize])
	off += idFieldSize
	receiverID := stripZeroPad(raw[off : off+idFieldSize])
	off += idFieldSize
	flags := binary.BigEndian.Uint32(raw[off:])
	off += 4
	off += 3 * 4 // reserved

	if uint32(len(raw)-HeaderSize) < payloadSize {
		return Header{}, nil, fmt.Errorf("%w: payload truncated", ErrProtocolInvalid)
	}
	payload := raw[HeaderSize : HeaderSize+int(payloadSize)]
	if Checksum(payload) != checksum {
		return Header{}, nil, fmt.Errorf("%w: checksum mismatch", ErrProtocolInvalid)
	}

	h := Header{
		Version:     version,
		Type:        msgType,
		Priority:    priority,
		SequenceID:  seq,
		Timestamp:   time.UnixMilli(int64(tsMillis)),
		PayloadSize: payloadSize,
		Checksum:    checksum,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Flags:       flags,
	}
	return h, payload, nil
}

func putZeroPaddedASCII(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func stripZeroPad(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
