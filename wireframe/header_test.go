package wireframe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Type:       MessageTypeData,
		Priority:   3,
		SequenceID: 42,
		SenderID:   "node-a",
		ReceiverID: "node-b",
	}
	payload := []byte("hello, wire")

	frame, err := Encode(h, payload)
	require.NoError(t, err)

	got, gotPayload, err := Decode(frame, 0)
	require.NoError(t, err)
	require.Equal(t, h.SequenceID, got.SequenceID)
	require.Equal(t, h.SenderID, got.SenderID)
	require.Equal(t, h.ReceiverID, got.ReceiverID)
	require.Equal(t, payload, gotPayload)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	frame, err := Encode(Header{}, []byte("x"))
	require.NoError(t, err)
	frame[0] ^= 0xFF

	_, _, err = Decode(frame, 0)
	require.True(t, errors.Is(err, ErrProtocolInvalid))
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	frame, err := Encode(Header{}, []byte("payload"))
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01 // corrupt payload after checksum was computed

	_, _, err = Decode(frame, 0)
	require.True(t, errors.Is(err, ErrProtocolInvalid))
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	frame, err := Encode(Header{}, make([]byte, 100))
	require.NoError(t, err)

	_, _, err = Decode(frame, 50)
	require.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestEncodePooledRoundTrip(t *testing.T) {
	h := Header{SequenceID: 7, SenderID: "a", ReceiverID: "b"}
	payload := []byte("pooled frame")

	frame, release, err := EncodePooled(h, payload)
	require.NoError(t, err)
	defer release()

	got, gotPayload, err := Decode(frame, 0)
	require.NoError(t, err)
	require.Equal(t, h.SequenceID, got.SequenceID)
	require.Equal(t, payload, gotPayload)
}

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, " +
		"the quick brown fox jumps over the lazy dog")
	h, compressed := CompressPayload(Header{}, payload)
	require.NotZero(t, h.Flags&FlagCompressed)
	require.Less(t, len(compressed), len(payload))

	out, err := DecompressPayload(compressed)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}
