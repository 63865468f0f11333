package memory

import (
	"context"
	"sync"

	"ridemate/internal/models"
)

const subscriberBuffer = 256

type subscriber struct {
	query models.SubscriptionQuery
	ch    chan models.ChangeEvent
	once  sync.Once
}

type feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

func newFeed() *feed {
	return &feed{subs: make(map[int]*subscriber)}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers a listener for committed writes. A subscriber that
// falls subscriberBuffer events behind is dropped and its channel closed.
func (s *Store) Subscribe(ctx context.Context, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error) {
	f := s.feed
	sub := &subscriber{query: query, ch: make(chan models.ChangeEvent, subscriberBuffer)}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = sub
	f.mu.Unlock()

	done := make(chan struct{})
	var stop sync.Once
	cancel := func() {
		stop.Do(func() {
			close(done)
			f.remove(id)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel, nil
}

func (f *feed) remove(id int) {
	f.mu.Lock()
	sub, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()
	if ok {
		sub.close()
	}
}

func (f *feed) publish(events []models.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
next:
	for id, sub := range f.subs {
		for _, ev := range events {
			if !sub.query.Matches(ev) {
				continue
			}
			select {
			case sub.ch <- ev:
			default:
				delete(f.subs, id)
				sub.close()
				continue next
			}
		}
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sub := range f.subs {
		delete(f.subs, id)
		sub.close()
	}
}
