package bitset

import "testing"

func TestSetGetClearBoundaries(t *testing.T) {
	const n = 17
	bs := New(n)

	for _, idx := range []uint64{0, 7, 8, n - 1} {
		if got, err := bs.Get(idx); err != nil || got {
			t.Fatalf("index %d: expected unset, got %v err %v", idx, got, err)
		}

		if err := bs.Set(idx); err != nil {
			t.Fatalf("index %d: Set returned error: %v", idx, err)
		}

		if got, err := bs.Get(idx); err != nil || !got {
			t.Fatalf("index %d: expected set after Set, got %v err %v", idx, got, err)
		}

		if err := bs.Clear(idx); err != nil {
			t.Fatalf("index %d: Clear returned error: %v", idx, err)
		}

		if got, err := bs.Get(idx); err != nil || got {
			t.Fatalf("index %d: expected unset after Clear, got %v err %v", idx, got, err)
		}
	}
}

func TestOutOfRangeIndexFails(t *testing.T) {
	bs := New(8)

	if _, err := bs.Get(8); err == nil {
		t.Error("Get(N) on an N-bit bitset should fail")
	}
	if err := bs.Set(8); err == nil {
		t.Error("Set(N) on an N-bit bitset should fail")
	}
	if err := bs.Clear(8); err == nil {
		t.Error("Clear(N) on an N-bit bitset should fail")
	}
}

func TestNilBitset(t *testing.T) {
	var bs *Bitset

	if got, err := bs.Get(0); err == nil || got {
		t.Errorf("Get on a nil bitset should fail, got %v err %v", got, err)
	}
	if err := bs.Set(0); err == nil {
		t.Error("Set on a nil bitset should fail")
	}
	if err := bs.Clear(0); err == nil {
		t.Error("Clear on a nil bitset should fail")
	}
	if bs.Len() != 0 {
		t.Error("Len on a nil bitset should be 0")
	}
}

func TestByteSizing(t *testing.T) {
	cases := map[uint64]int{
		0:  0,
		1:  1,
		7:  1,
		8:  1,
		9:  2,
		16: 2,
		17: 3,
	}
	for n, wantBytes := range cases {
		bs := New(n)
		if len(bs.data) != wantBytes {
			t.Errorf("New(%d): expected %d bytes, got %d", n, wantBytes, len(bs.data))
		}
	}
}
