package geostream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/iamleson98/geostream/message"
	"github.com/iamleson98/geostream/pipeline"
)

// Output is implemented by collectors of the messages that reach the
// terminal stage.
type Output interface {
	Emit(msg message.Message) error
}

// printer is the terminal stage: it hands every message to the output.
type printer struct {
	out   Output
	count int
}

func (s *printer) Consume(_ context.Context, p pipeline.Payload) error {
	payload := p.(*eventPayload)

	switch payload.Msg.(type) {
	case message.EndPoint, message.PolygonStart, message.LineStart,
		message.Point, message.LineEnd, message.PolygonEnd:
	default:
		return fmt.Errorf("print message %d: %w", payload.Seq, message.ErrUnknownVariant)
	}

	if err := s.out.Emit(payload.Msg); err != nil {
		return fmt.Errorf("print message %d: %w", payload.Seq, err)
	}
	s.count++
	return nil
}

// Recorder is an Output that keeps every emitted message in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []message.Message
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return new(Recorder)
}

func (r *Recorder) Emit(msg message.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of the recorded messages in emission order.
func (r *Recorder) Messages() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message(nil), r.msgs...)
}

// WriterOutput writes one line per message, prefixed with a label.
type WriterOutput struct {
	mu    sync.Mutex
	w     io.Writer
	label string
}

// NewWriterOutput returns an Output writing lines of the form
// "<label> <message>" to w.
func NewWriterOutput(w io.Writer, label string) *WriterOutput {
	return &WriterOutput{w: w, label: label}
}

func (o *WriterOutput) Emit(msg message.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, err := fmt.Fprintf(o.w, "%s %v\n", o.label, msg)
	return err
}
