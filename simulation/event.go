package simulation

import (
	"sync"

	"intersection/shared"

	log "github.com/sirupsen/logrus"
)

// Event is anything published on the simulation's event bus
type Event interface {
	event()
}

// TickEvent carries the frame produced by a completed tick
type TickEvent struct {
	Frame shared.Frame
}

// AgentRemovedEvent is published when an agent leaves the live set, either by reaching its
// destination or by being picked up
type AgentRemovedEvent struct {
	Tick     int
	ID       int
	Kind     shared.Kind
	Position shared.Position
}

func (TickEvent) event()         {}
func (AgentRemovedEvent) event() {}

// Broadcaster fans events from the bus out to every subscriber. Publishing never blocks the
// scheduler: a full bus or a full subscriber buffer drops the event.
type Broadcaster struct {
	bus                 chan Event
	stopEventProcessing chan struct{}
	subscribers         map[int]chan Event
	nextSubscriber      int
	stopped             bool
	mu                  sync.Mutex
	stopOnce            sync.Once
}

// NewBroadcaster creates a broadcaster and starts its event processor
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		bus:                 make(chan Event, 100),
		stopEventProcessing: make(chan struct{}),
		subscribers:         make(map[int]chan Event),
	}
	go b.processEvents()
	return b
}

// Subscribe registers a subscriber with the given buffer size. The returned cancel function
// unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubscriber
	b.nextSubscriber++
	ch := make(chan Event, buffer)
	if b.stopped {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish queues an event for delivery
func (b *Broadcaster) Publish(e Event) {
	select {
	case b.bus <- e:
	default:
		log.Warn("[EventBus] Bus full, dropping event")
	}
}

// processEvents listens on the bus and forwards each event to all subscribers
func (b *Broadcaster) processEvents() {
	log.Debug("[EventBus] Starting event processor...")
	for {
		select {
		case e := <-b.bus:
			b.mu.Lock()
			for id, sub := range b.subscribers {
				select {
				case sub <- e:
				default:
					log.Debugf("[EventBus] Subscriber %d is slow, dropping event", id)
				}
			}
			b.mu.Unlock()
		case <-b.stopEventProcessing:
			log.Debug("[EventBus] Stopping event processor...")
			b.mu.Lock()
			b.stopped = true
			for id, sub := range b.subscribers {
				delete(b.subscribers, id)
				close(sub)
			}
			b.mu.Unlock()
			return
		}
	}
}

// Stop terminates the event processor and closes every subscriber channel
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopEventProcessing) })
}
