package geostream

import (
	"context"

	"github.com/iamleson98/geostream/message"
	"github.com/iamleson98/geostream/pipeline"
)

// messageSource adapts a message.Iterator to a pipeline.Source.
type messageSource struct {
	it  message.Iterator
	seq uint64
}

func (s *messageSource) Error() error {
	return s.it.Error()
}

func (s *messageSource) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return s.it.Next()
}

func (s *messageSource) Payload() pipeline.Payload {
	s.seq++
	return newEventPayload(s.seq, s.it.Message())
}
