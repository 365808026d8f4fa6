package pipeline

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO connecting one or more producer handles to a
// single consumer handle.
type queue struct {
	mu           sync.Mutex
	msgs         []Payload
	producers    int
	consumerGone bool

	// ready holds at most one wake-up token for the consumer.
	ready chan struct{}
}

// NewQueue creates a queue and returns its producer and consumer handles.
func NewQueue() (*Producer, *Consumer) {
	q := &queue{
		producers: 1,
		ready:     make(chan struct{}, 1),
	}
	return &Producer{q: q}, &Consumer{q: q}
}

func (q *queue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Producer is a sending handle of a queue. Clone it for every additional
// owner; the queue is closed once all handles have been closed.
type Producer struct {
	q *queue

	mu     sync.Mutex
	closed bool
}

// Send enqueues payload for the consumer. It never blocks.
func (p *Producer) Send(payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProducerClosed
	}

	q := p.q
	q.mu.Lock()
	if q.consumerGone {
		q.mu.Unlock()
		return ErrConsumerGone
	}
	q.msgs = append(q.msgs, payload)
	q.mu.Unlock()

	q.notify()
	return nil
}

// Clone returns an additional producer handle for the same queue. Cloning a
// closed handle returns a closed handle.
func (p *Producer) Clone() *Producer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return &Producer{q: p.q, closed: true}
	}

	p.q.mu.Lock()
	p.q.producers++
	p.q.mu.Unlock()
	return &Producer{q: p.q}
}

// Close releases the handle. Closing an already closed handle is a no-op.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	q := p.q
	q.mu.Lock()
	q.producers--
	last := q.producers == 0
	q.mu.Unlock()

	if last {
		q.notify()
	}
}

// Consumer is the single receiving handle of a queue.
type Consumer struct {
	q *queue
}

// Receive blocks until a message is available and returns it. Once every
// producer has been closed and the queue is drained it returns ErrQueueClosed.
func (c *Consumer) Receive(ctx context.Context) (Payload, error) {
	q := c.q
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if q.consumerGone {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(q.msgs) != 0 {
			// Dequeue message from the head of the queue.
			p := q.msgs[0]
			q.msgs[0] = nil
			q.msgs = q.msgs[1:]
			q.mu.Unlock()
			return p, nil
		}
		if q.producers == 0 {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pending returns the number of messages waiting to be received.
func (c *Consumer) Pending() int {
	c.q.mu.Lock()
	defer c.q.mu.Unlock()
	return len(c.q.msgs)
}

// Close drops the consumer. Pending messages are discarded and every
// subsequent Send fails with ErrConsumerGone.
func (c *Consumer) Close() {
	q := c.q
	q.mu.Lock()
	q.consumerGone = true
	discarded := q.msgs
	q.msgs = nil
	q.mu.Unlock()

	for _, p := range discarded {
		if p != nil {
			p.MarkAsProcessed()
		}
	}
}
