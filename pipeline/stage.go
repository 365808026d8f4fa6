package pipeline

import (
	"context"
)

type fifo struct {
	proc Processor
}

// FIFO returns a StageRunner that processes incoming payloads one at a time,
// in arrival order, and forwards the results to the next stage.
func FIFO(proc Processor) StageRunner {
	return fifo{proc: proc}
}

func (r fifo) Name() string {
	if n, ok := r.proc.(Namer); ok {
		return n.Name()
	}
	return ""
}

func (r fifo) Run(ctx context.Context, params StageParams) error {
	for {
		payloadIn, err := params.Input().Receive(ctx)
		if err != nil {
			return receiveFailure(err)
		}
		countReceived(params)

		payloadOut, err := r.proc.Process(ctx, payloadIn)
		if err != nil {
			return processFailure(err)
		}

		// If the processor did not output a payload for the next stage there is nothing we need to do.
		if payloadOut == nil {
			payloadIn.MarkAsProcessed()
			continue
		}

		if err = params.Output().Send(payloadOut); err != nil {
			payloadOut.MarkAsProcessed()
			return sendFailure(err)
		}
		countForwarded(params)
	}
}

// workerParams implements StageParams for the workers spawned by the
// pipeline. Counters are only read after the worker exits.
type workerParams struct {
	stage int
	name  string
	inQ   *Consumer
	outQ  *Producer

	received  int
	forwarded int
}

func (p *workerParams) StageIndex() int   { return p.stage }
func (p *workerParams) Input() *Consumer  { return p.inQ }
func (p *workerParams) Output() *Producer { return p.outQ }

func countReceived(params StageParams) {
	if wp, ok := params.(*workerParams); ok {
		wp.received++
	}
}

func countForwarded(params StageParams) {
	if wp, ok := params.(*workerParams); ok {
		wp.forwarded++
	}
}
