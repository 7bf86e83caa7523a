package pool

import "testing"

func TestSyncPoolReusesInstances(t *testing.T) {
	created := 0
	p := NewSyncPool(func() *int {
		created++
		v := 0
		return &v
	})

	a := p.Get()
	*a = 42
	p.Put(a)

	b := p.Get()
	if created != 1 {
		t.Fatalf("created = %d, want 1 (instance should be reused)", created)
	}
	_ = b
}

func TestRingBufferEnqueueDequeueOrder(t *testing.T) {
	r := NewRingBuffer[int](4)
	if !r.Enqueue(1) || !r.Enqueue(2) || !r.Enqueue(3) {
		t.Fatal("enqueue failed under capacity")
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	v, ok := r.Dequeue()
	if !ok || v != 1 {
		t.Fatalf("Dequeue() = %d, %v, want 1, true", v, ok)
	}
}

func TestRingBufferRejectsOverCapacity(t *testing.T) {
	r := NewRingBuffer[int](2)
	if !r.Enqueue(1) || !r.Enqueue(2) {
		t.Fatal("enqueue failed under capacity")
	}
	if r.Enqueue(3) {
		t.Fatal("enqueue should fail once at capacity")
	}
}

func TestNewRingBufferPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two size")
		}
	}()
	NewRingBuffer[int](3)
}
