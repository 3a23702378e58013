package broadcast

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"github.com/aliskhannn/imageforge/internal/model"
)

// retireDelay is how long a job's channel survives after its terminal
// event, to tolerate slow subscriber attachment.
const retireDelay = 60 * time.Second

// subscriberBuffer is the per-subscriber channel capacity. Events beyond
// it are dropped for that subscriber; this is a fire-and-forget
// multicast, not a replay log.
const subscriberBuffer = 16

// Broadcaster fans progress events of running jobs out to any number of
// subscribers. One topic exists per job id; the orchestrator is the sole
// publisher. Subscribers attaching after an event was published do not
// see it.
type Broadcaster struct {
	bus evbus.Bus

	mu   sync.Mutex
	subs map[string][]*subscription
}

type subscription struct {
	ch      chan model.ProgressEvent
	handler func(model.ProgressEvent)
	once    sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		bus:  evbus.New(),
		subs: make(map[string][]*subscription),
	}
}

// Subscribe attaches to the event stream of one job. The returned cancel
// function detaches and closes the channel; the channel is also closed
// when the job's stream is retired after its terminal event.
func (b *Broadcaster) Subscribe(jobID uuid.UUID) (<-chan model.ProgressEvent, func()) {
	sub := &subscription{ch: make(chan model.ProgressEvent, subscriberBuffer)}
	sub.handler = func(evt model.ProgressEvent) {
		select {
		case sub.ch <- evt:
		default: // slow subscriber, drop
		}
	}

	t := topic(jobID)

	b.mu.Lock()
	b.subs[t] = append(b.subs[t], sub)
	b.mu.Unlock()

	_ = b.bus.Subscribe(t, sub.handler)

	cancel := func() {
		b.mu.Lock()
		subs := b.subs[t]
		for i, s := range subs {
			if s == sub {
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()

		_ = b.bus.Unsubscribe(t, sub.handler)
		sub.close()
	}

	return sub.ch, cancel
}

// Publish delivers an event to every current subscriber of its job. A
// terminal event schedules the stream's retirement.
func (b *Broadcaster) Publish(evt model.ProgressEvent) {
	b.bus.Publish(topic(evt.JobID), evt)

	if evt.Terminal() {
		time.AfterFunc(retireDelay, func() { b.retire(evt.JobID) })
	}
}

// retire unsubscribes and closes every remaining subscriber of a job.
func (b *Broadcaster) retire(jobID uuid.UUID) {
	t := topic(jobID)

	b.mu.Lock()
	subs := b.subs[t]
	delete(b.subs, t)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = b.bus.Unsubscribe(t, sub.handler)
		sub.close()
	}
}

func topic(jobID uuid.UUID) string {
	return "job:" + jobID.String()
}
