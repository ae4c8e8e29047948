package log

// queue is the bounded FIFO between producers and the consumer task. It is
// a plain buffered channel: push/pop atomicity and the blocking semantics of
// the consumer come from the runtime, not from hand-rolled locking.
type queue struct {
	ch chan Entry
}

// newQueue sizes the channel from a memory budget in bytes divided by the
// static entry footprint, with a floor of one slot.
func newQueue(memoryBudget int) *queue {
	capacity := memoryBudget / entrySize
	if capacity < 1 {
		capacity = 1
	}
	return &queue{ch: make(chan Entry, capacity)}
}

// tryPush attempts a non-blocking push. It returns false when the queue is
// full or already closed; the recover guard covers producers racing a
// shutdown that closed the channel.
func (q *queue) tryPush(e Entry) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// tryPop removes one entry without blocking. Used by the producer-side
// backpressure path to make room in a full queue.
func (q *queue) tryPop() (Entry, bool) {
	select {
	case e, open := <-q.ch:
		return e, open
	default:
		return Entry{}, false
	}
}

// close stops the queue. The consumer drains whatever is buffered and exits.
func (q *queue) close() {
	close(q.ch)
}

func (q *queue) capacity() int {
	return cap(q.ch)
}

func (q *queue) spacesAvailable() int {
	return cap(q.ch) - len(q.ch)
}

func (q *queue) messagesWaiting() int {
	return len(q.ch)
}
