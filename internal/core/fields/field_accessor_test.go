package fields

import (
	"sync"
	"testing"
)

func TestFA_BasicOperations(t *testing.T) {
	fa := NewFA[int](42)

	if got := fa.Get(); got != 42 {
		t.Errorf("Expected initial value 42, got %d", got)
	}

	fa.Set(100)
	if got := fa.Get(); got != 100 {
		t.Errorf("Expected value 100 after set, got %d", got)
	}

	if version := fa.Version(); version != 1 {
		t.Errorf("Expected version 1 after one set operation, got %d", version)
	}
	if !fa.ChangedSince(0) || fa.ChangedSince(1) {
		t.Error("ChangedSince does not track the version")
	}
}

func TestFA_ZeroValue(t *testing.T) {
	fa := NewFA[*int]()

	if got := fa.Get(); got != nil {
		t.Errorf("Expected nil zero value, got %v", got)
	}
	if old := fa.Swap(new(int)); old != nil {
		t.Errorf("Expected nil from first swap, got %v", old)
	}
}

func TestFA_SubscribersInOrder(t *testing.T) {
	fa := NewFA[string]()
	var order []string
	fa.Subscribe(func(v string) { order = append(order, "a:"+v) })
	unsub := fa.Subscribe(func(v string) { order = append(order, "b:"+v) })

	fa.Set("x")
	unsub()
	unsub()
	fa.Set("y")

	want := []string{"a:x", "b:x", "a:y"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, order)
		}
	}
}

func TestFA_ConcurrentSet(t *testing.T) {
	fa := NewFA[int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fa.Set(i)
		}()
	}
	wg.Wait()

	if fa.Version() != 50 {
		t.Errorf("Expected version 50, got %d", fa.Version())
	}
}
