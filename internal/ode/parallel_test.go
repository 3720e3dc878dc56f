package ode

import (
	"sync/atomic"
	"testing"
)

func TestParallelForCoversEveryIndex(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		n := 37
		hits := make([]int32, n)
		ParallelFor(n, workers, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, h)
			}
		}
	}
}

func TestParallelForEmptyRange(t *testing.T) {
	called := int32(0)
	ParallelFor(0, 4, func(start, end int) {
		atomic.AddInt32(&called, 1)
	})
	if called != 0 {
		t.Fatalf("callback ran %d times on an empty range", called)
	}
}

func TestParallelForMoreWorkersThanWork(t *testing.T) {
	n := 3
	hits := make([]int32, n)
	ParallelFor(n, 8, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
}
