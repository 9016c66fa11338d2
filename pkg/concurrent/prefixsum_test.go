package concurrent

import (
	"context"
	"math/rand"
	"testing"
)

func TestPrefixSumAllZeros(t *testing.T) {
	n := 1 << 19
	in := make([]int64, n)
	out := make([]int64, n)
	for i := range out {
		out[i] = 420
	}

	pool := NewPool(8)
	if err := pool.PrefixSum(context.Background(), in, out, Sum, 0); err != nil {
		t.Fatalf("PrefixSum: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %d, want 0", i, v)
		}
	}
}

func TestPrefixSumRandom(t *testing.T) {
	n := 1 << 19
	src := rand.New(rand.NewSource(420))
	in := make([]int64, n)
	for i := range in {
		in[i] = int64(src.Intn(1000) - 500)
	}

	want := SequentialPrefixSum(in, Sum, 0)

	testCases := []struct {
		name       string
		numThreads int
	}{
		{"single thread", 1},
		{"four threads", 4},
		{"sixteen threads", 16},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]int64, n)
			pool := NewPool(tt.numThreads)
			if err := pool.PrefixSum(context.Background(), in, out, Sum, 0); err != nil {
				t.Fatalf("PrefixSum: %v", err)
			}
			for i := range want {
				if out[i] != want[i] {
					t.Fatalf("out[%d] = %d, want %d", i, out[i], want[i])
				}
			}
		})
	}
}

func TestPrefixSumInPlace(t *testing.T) {
	n := 1 << 19
	src := rand.New(rand.NewSource(420))
	in := make([]int64, n)
	for i := range in {
		in[i] = int64(src.Intn(1000) - 500)
	}
	want := SequentialPrefixSum(in, Sum, 0)

	pool := NewPool(8)
	if err := pool.PrefixSum(context.Background(), in, in, Sum, 0); err != nil {
		t.Fatalf("PrefixSum in-place: %v", err)
	}
	for i := range want {
		if in[i] != want[i] {
			t.Fatalf("in[%d] = %d, want %d", i, in[i], want[i])
		}
	}
}
