package reactor

import "testing"

func TestBufferAppendRetrieve(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte("hello"))
	if b.ReadableBytes() != 5 {
		t.Fatalf("ReadableBytes = %d, want 5", b.ReadableBytes())
	}
	if string(b.Peek()) != "hello" {
		t.Fatalf("Peek = %q, want hello", b.Peek())
	}
	b.Retrieve(5)
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes after Retrieve = %d, want 0", b.ReadableBytes())
	}
}

func TestBufferGrowBeyondCapacity(t *testing.T) {
	b := NewBuffer()
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i)
	}
	b.Append(big)
	if b.ReadableBytes() != len(big) {
		t.Fatalf("ReadableBytes = %d, want %d", b.ReadableBytes(), len(big))
	}
	got := b.RetrieveAsBytes()
	for i := range big {
		if got[i] != big[i] {
			t.Fatalf("byte %d mismatch after grow", i)
		}
	}
}

func TestBufferPrepend(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte("payload"))
	b.PrependUint32(7)
	if b.ReadableBytes() != 4+len("payload") {
		t.Fatalf("ReadableBytes = %d, want %d", b.ReadableBytes(), 4+len("payload"))
	}
}

func TestBufferCompactsInsteadOfGrowingWhenPossible(t *testing.T) {
	b := NewBuffer()
	b.Append(make([]byte, 100))
	b.Retrieve(50) // leaves a consumed prefix that compaction can reclaim
	before := len(b.data)
	b.Append(make([]byte, initialBufferSize-80)) // larger than the tail, smaller than tail+prefix
	if len(b.data) != before {
		t.Fatalf("expected compaction to avoid growth, cap changed from %d to %d", before, len(b.data))
	}
}
