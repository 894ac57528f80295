package tracker

import (
	"fmt"
	"sync"
	"testing"
)

func TestDispatcher_PreservesOrderPerKey(t *testing.T) {
	d := NewDispatcher(4, 2)

	var mu sync.Mutex
	seen := make(map[string][]int)
	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b", "c"} {
			d.Dispatch(key, func() {
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			})
		}
	}
	d.Close()

	for key, got := range seen {
		if len(got) != 50 {
			t.Fatalf("key %s: expected 50 tasks, got %d", key, len(got))
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("key %s: task %d ran at position %d", key, v, i)
			}
		}
	}
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(1, 1)
	d.Close()
	if d.Dispatch("k", func() { t.Fatal("task must not run") }) {
		t.Fatal("expected dispatch to be rejected")
	}
}

func TestDispatcher_SameKeySameShard(t *testing.T) {
	d := NewDispatcher(8, 1)
	defer d.Close()
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("guild:%d", i)
		if d.shardFor(key) != d.shardFor(key) {
			t.Fatalf("key %s mapped to different shards", key)
		}
	}
}
