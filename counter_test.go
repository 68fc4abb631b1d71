package guid

import (
	"math"
	"sync"
	"testing"
)

func TestCounter_Sequence(t *testing.T) {
	c := NewCounterRange(0, 3, 0)

	want := []int64{0, 1, 2, 3, 0, 1, 2, 3, 0}
	for i, w := range want {
		if got := c.Next(); got != w {
			t.Fatalf("Next() #%d = %d, want %d", i, got, w)
		}
	}
}

func TestCounter_WrapReturnsMaxOnce(t *testing.T) {
	c := NewCounterRange(10, 12, 12)

	if got := c.Next(); got != 12 {
		t.Errorf("Next() at max = %d, want 12", got)
	}
	if got := c.Next(); got != 10 {
		t.Errorf("Next() after wrap = %d, want 10", got)
	}
}

func TestNewCounter_Bounds(t *testing.T) {
	tests := []struct {
		bytes int
		max   int64
	}{
		{1, 255},
		{2, 65535},
		{3, 1<<24 - 1},
		{4, 1<<32 - 1},
	}
	for _, tt := range tests {
		c := NewCounter(tt.bytes)
		if c.Min() != 0 || c.Max() != tt.max {
			t.Errorf("NewCounter(%d) range = [%d, %d], want [0, %d]", tt.bytes, c.Min(), c.Max(), tt.max)
		}
	}
}

func TestNewCounter_PanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewCounter(0) should panic")
		}
	}()
	NewCounter(0)
}

func TestNewCounterRange_ClampsStart(t *testing.T) {
	c := NewCounterRange(5, 9, 100)
	if got := c.Next(); got != 5 {
		t.Errorf("Next() = %d, want 5", got)
	}

	swapped := NewCounterRange(9, 5, 7)
	if swapped.Min() != 5 || swapped.Max() != 9 {
		t.Errorf("range = [%d, %d], want [5, 9]", swapped.Min(), swapped.Max())
	}
}

func TestCounter_Int32Wrap(t *testing.T) {
	c := NewCounterRange(math.MinInt32, math.MaxInt32, math.MaxInt32)

	if got := c.Next(); got != math.MaxInt32 {
		t.Errorf("Next() = %d, want MaxInt32", got)
	}
	if got := c.Next(); got != math.MinInt32 {
		t.Errorf("Next() = %d, want MinInt32", got)
	}
}

// TestCounter_ConcurrentCycle checks that one full cycle drawn concurrently
// emits every value exactly once, including across the wrap.
func TestCounter_ConcurrentCycle(t *testing.T) {
	const (
		size       = 1 << 12
		goroutines = 8
	)
	c := NewCounterRange(0, size-1, size/2)

	var (
		mu   sync.Mutex
		seen = make(map[int64]int, size)
		wg   sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, size/goroutines)
			for i := 0; i < size/goroutines; i++ {
				local = append(local, c.Next())
			}
			mu.Lock()
			for _, v := range local {
				seen[v]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != size {
		t.Fatalf("distinct values = %d, want %d", len(seen), size)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %d emitted %d times", v, n)
		}
	}
}

func BenchmarkCounter_Next(b *testing.B) {
	c := NewCounter(3)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Next()
	}
}

func BenchmarkCounter_NextParallel(b *testing.B) {
	c := NewCounter(3)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Next()
		}
	})
}
