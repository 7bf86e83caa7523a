// File: wireframe/compress.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Optional payload compression for the FlagCompressed bit. Encoders and
// decoders are pooled since zstd construction is comparatively expensive
// and frames are encoded/decoded far more often than codecs are built.

package wireframe

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		return enc
	}}
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

// CompressPayload compresses data with zstd and returns the frame with
// FlagCompressed set on h.Flags.
func CompressPayload(h Header, data []byte) (Header, []byte) {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)
	compressed := enc.EncodeAll(data, make([]byte, 0, len(data)))
	h.Flags |= FlagCompressed
	return h, compressed
}

// DecompressPayload reverses CompressPayload. Callers check
// h.Flags&FlagCompressed before calling this.
func DecompressPayload(data []byte) ([]byte, error) {
	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)
	return dec.DecodeAll(data, nil)
}
