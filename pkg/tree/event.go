package tree

// Op identifies the engine call that produced an Event.
type Op string

const (
	OpFilter Op = "filter"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
	OpMove   Op = "move"
	OpReload Op = "reload"
)

// Event is delivered to subscribers after a call has changed engine state.
// IDs lists the entities involved: the new filtered tree for OpFilter, the
// removed entities for OpDelete, [target, destination] for OpMove.
type Event struct {
	Op    Op
	IDs   []int
	Query string
}

// Subscribe registers fn to be called synchronously after every state
// change. The returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Event)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	return func() {
		delete(e.listeners, id)
	}
}

func (e *Engine) emit(ev Event) {
	if len(e.listeners) == 0 {
		return
	}
	// Deliver in subscription order so listeners see a stable sequence.
	for id := 0; id < e.nextSub; id++ {
		if fn, ok := e.listeners[id]; ok {
			fn(ev)
		}
	}
}
