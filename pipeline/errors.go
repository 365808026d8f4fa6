package pipeline

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned by Receive once every producer of the queue
	// has been closed and no messages are pending.
	ErrQueueClosed = errors.New("queue closed")

	// ErrConsumerGone is returned by Send when the consumer of the queue has
	// already exited.
	ErrConsumerGone = errors.New("queue consumer gone")

	// ErrProducerClosed is returned by Send on a producer handle that was
	// already released.
	ErrProducerClosed = errors.New("producer handle closed")

	// ErrUpstreamClosed annotates a receive failure observed by a stage whose
	// upstream did not finish cleanly.
	ErrUpstreamClosed = errors.New("upstream closed mid-stream")
)

// FailureKind identifies the side of a stage that failed.
type FailureKind uint8

const (
	KindReceive  FailureKind = iota // the inbound queue failed
	KindSend                        // the outbound queue failed
	KindProcess                     // the stage's processor or sink failed
	KindCanceled                    // the context was canceled
)

func (k FailureKind) String() string {
	switch k {
	case KindReceive:
		return "receive"
	case KindSend:
		return "send"
	case KindProcess:
		return "process"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// sourceStage is the stage index reported for failures of the pipeline source.
const sourceStage = -1

// StageError is the outcome of a terminated stage worker.
type StageError struct {
	Stage int
	Name  string
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %d (%s): %s failure: %v", e.Stage, e.Name, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsClosed reports whether the outcome is the receive failure a stage
// observes when its inbound queue is closed and drained.
func (e *StageError) IsClosed() bool {
	return e.Kind == KindReceive && errors.Is(e.Err, ErrQueueClosed)
}

func receiveFailure(err error) *StageError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StageError{Kind: KindCanceled, Err: err}
	}
	return &StageError{Kind: KindReceive, Err: err}
}

func sendFailure(err error) *StageError {
	return &StageError{Kind: KindSend, Err: err}
}

func processFailure(err error) *StageError {
	return &StageError{Kind: KindProcess, Err: err}
}
