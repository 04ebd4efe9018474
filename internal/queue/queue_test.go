package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[testItem]()

	// Push past the initial ring size to exercise growth.
	for i := 0; i < 20; i++ {
		q.Push(testItem{ID: i})
	}
	if q.Len() != 20 {
		t.Fatalf("expected length 20, got %d", q.Len())
	}

	for i := 0; i < 20; i++ {
		item, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if item.ID != i {
			t.Errorf("pop %d: expected ID %d, got %d", i, i, item.ID)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("expected pop on empty queue to report false")
	}
}

func TestQueue_GrowAfterWrap(t *testing.T) {
	q := New[int]()
	for i := 0; i < 6; i++ {
		q.Push(i)
	}
	for i := 0; i < 4; i++ {
		q.Pop()
	}
	// head is now offset; grow must keep order across the wrap.
	for i := 6; i < 16; i++ {
		q.Push(i)
	}

	got := q.Drain()
	if len(got) != 12 {
		t.Fatalf("expected 12 items, got %d", len(got))
	}
	for i, v := range got {
		if v != i+4 {
			t.Errorf("index %d: expected %d, got %d", i, i+4, v)
		}
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	q.Push(testItem{ID: 4})
	if item, _ := q.Pop(); item.ID != 4 {
		t.Errorf("expected ID 4 after clear, got %d", item.ID)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	result := q.Drain()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].ID != 1 || result[1].ID != 2 || result[2].ID != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentDrain(t *testing.T) {
	q := New[testItem]()
	for i := 0; i < 100; i++ {
		q.Push(testItem{ID: i})
	}

	var wg sync.WaitGroup
	results := make(chan []testItem, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Drain()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}
