package geostream

import (
	"sync"

	"github.com/iamleson98/geostream/message"
	"github.com/iamleson98/geostream/pipeline"
)

var (
	_ pipeline.Payload = (*eventPayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} { return new(eventPayload) },
	}
)

// eventPayload carries a single message through the pipeline together with
// its position in the injected stream.
type eventPayload struct {
	Seq uint64
	Msg message.Message
}

func newEventPayload(seq uint64, msg message.Message) *eventPayload {
	p := payloadPool.Get().(*eventPayload)
	p.Seq = seq
	p.Msg = msg
	return p
}

func (p *eventPayload) MarkAsProcessed() {
	p.Seq = 0
	p.Msg = nil
	payloadPool.Put(p)
}
