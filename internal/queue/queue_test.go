package queue

import (
	"sync"
	"testing"
)

type sample struct {
	Frame uint
	Speed float64
}

func TestPushAndLen(t *testing.T) {
	q := New[sample]()
	if !q.Empty() || q.Len() != 0 {
		t.Fatal("new queue should be empty")
	}

	q.Push(sample{Frame: 1})
	q.Push(sample{Frame: 2, Speed: 14.2}, sample{Frame: 3, Speed: 15.0})

	if q.Len() != 3 {
		t.Errorf("expected 3 queued samples, got %d", q.Len())
	}
	if q.Empty() {
		t.Error("queue with items reported empty")
	}
}

func TestGetAndEmptyPreservesOrder(t *testing.T) {
	q := New[sample]()
	for f := uint(1); f <= 5; f++ {
		q.Push(sample{Frame: f})
	}

	batch := q.GetAndEmpty()
	if len(batch) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(batch))
	}
	for i, s := range batch {
		if s.Frame != uint(i+1) {
			t.Errorf("sample %d out of order: frame %d", i, s.Frame)
		}
	}
	if !q.Empty() {
		t.Error("queue should be empty after drain")
	}
}

func TestGetAndEmptyOnEmptyQueue(t *testing.T) {
	q := New[sample]()
	if batch := q.GetAndEmpty(); len(batch) != 0 {
		t.Errorf("expected empty batch, got %d items", len(batch))
	}
}

// A failed flush pushes the batch back; nothing may be lost in the round
// trip.
func TestPushBackAfterFailedFlush(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Frame: 1}, sample{Frame: 2})

	batch := q.GetAndEmpty()
	q.Push(sample{Frame: 3})
	q.Push(batch...)

	if q.Len() != 3 {
		t.Fatalf("expected 3 samples after requeue, got %d", q.Len())
	}
}

func TestConcurrentProducersSingleDrain(t *testing.T) {
	q := New[sample]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(f uint) {
			defer wg.Done()
			q.Push(sample{Frame: f})
		}(uint(i))
	}
	wg.Wait()

	if got := len(q.GetAndEmpty()); got != 50 {
		t.Errorf("expected 50 samples, got %d", got)
	}
}

func TestConcurrentDrainsSplitTheBatch(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}

	var wg sync.WaitGroup
	batches := make(chan []int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(batches)

	total := 0
	for b := range batches {
		total += len(b)
	}
	if total != 100 {
		t.Errorf("drains overlapped or dropped items: got %d of 100", total)
	}
}
