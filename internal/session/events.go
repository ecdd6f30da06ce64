package session

import "github.com/claude/liftcoach/internal/models"

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventSaved
	EventSaveFailed
	EventDiscarded
)

// Event is delivered to observers after the controller changes state.
type Event struct {
	Kind      EventKind
	SessionID string
	State     State
	Status    models.CompletionStatus
	RecordID  int64
	Err       error
}

// Observer receives controller events. It is called without the controller
// lock held and must not block.
type Observer func(Event)

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(e Event) {
	c.mu.Lock()
	obs := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		obs = append(obs, o)
	}
	c.mu.Unlock()

	for _, o := range obs {
		o(e)
	}
}
