package session

import (
	"sync"

	"github.com/coder/websocket"
)

type frame struct {
	typ  websocket.MessageType
	data []byte
}

// frameQueue is an unbounded FIFO between the reader goroutine and the
// dispatching loop. The read error is reported only after queued frames.
type frameQueue struct {
	mu    sync.Mutex
	items []frame
	err   error
	ready chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{ready: make(chan struct{}, 1)}
}

func (q *frameQueue) push(f frame) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
	q.notify()
}

func (q *frameQueue) fail(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
	q.notify()
}

// take returns the oldest frame, or the terminal read error once the queue
// is drained. ok is false when there is nothing yet; wait on ready then.
func (q *frameQueue) take() (f frame, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		f = q.items[0]
		q.items[0] = frame{}
		q.items = q.items[1:]
		return f, true, nil
	}
	if q.err != nil {
		return frame{}, true, q.err
	}
	return frame{}, false, nil
}

func (q *frameQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
