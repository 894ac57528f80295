package tracker

import (
	"hash/fnv"
	"sync"
)

// Dispatcher runs tasks on a fixed set of workers. Tasks sharing a key always
// land on the same worker and run in submission order.
type Dispatcher struct {
	shards []chan func()
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(shards, queueSize int) *Dispatcher {
	if shards <= 0 {
		shards = 1
	}
	d := &Dispatcher{shards: make([]chan func(), shards)}
	for i := range d.shards {
		ch := make(chan func(), queueSize)
		d.shards[i] = ch
		d.wg.Add(1)
		go d.run(ch)
	}
	return d
}

func (d *Dispatcher) run(ch <-chan func()) {
	defer d.wg.Done()
	for task := range ch {
		task()
	}
}

// Dispatch blocks while the key's queue is full. It reports false once the
// dispatcher is closed.
func (d *Dispatcher) Dispatch(key string, task func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.shards[d.shardFor(key)] <- task
	return true
}

func (d *Dispatcher) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// Close drains queued tasks and waits for the workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
