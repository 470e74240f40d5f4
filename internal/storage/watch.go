package storage

import (
	"context"
	"sync"
)

// watcher fans live-query snapshots out to subscribers.
//
// Each subscription is a 1-buffered channel with latest-wins delivery: when a
// subscriber lags, the pending snapshot is replaced instead of queueing, so a
// consumer only ever observes the most recent result set. Emissions a
// subscriber does observe arrive in publish order.
type watcher[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

func newWatcher[T any]() *watcher[T] {
	return &watcher[T]{subs: make(map[int]chan T)}
}

// subscribe registers a subscription primed with the current snapshot.
// The returned channel closes when ctx is done.
func (w *watcher[T]) subscribe(ctx context.Context, current T) <-chan T {
	ch := make(chan T, 1)
	ch <- current

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(ch)
		}
	}()

	return ch
}

// publish delivers a snapshot to every active subscription, replacing any
// snapshot the subscriber has not consumed yet. Never blocks.
func (w *watcher[T]) publish(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- v:
		default:
			// Drop the unconsumed snapshot and replace it with the latest.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
