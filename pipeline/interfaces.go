package pipeline

import "context"

// Payload is implemented by values that can be sent through a pipeline
type Payload interface {
	// MarkAsProcessed is invoked by the pipeline when the payload reaches
	// the sink or is dropped by a processor.
	MarkAsProcessed()
}

type Processor interface {
	Process(context.Context, Payload) (Payload, error)
}

type ProcessorFunc func(context.Context, Payload) (Payload, error)

func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageParams carries the queue endpoints a stage worker owns for the
// duration of its run.
type StageParams interface {
	StageIndex() int
	Input() *Consumer
	Output() *Producer
}

// StageRunner is implemented by objects that drive a single intermediate
// stage. Run returns once the stage terminates; the returned error is the
// stage outcome and is never nil.
type StageRunner interface {
	Run(context.Context, StageParams) error
}

type Source interface {
	Next(context.Context) bool
	Payload() Payload
	Error() error
}

type Sink interface {
	Consume(context.Context, Payload) error
}

// Namer is optionally implemented by stage runners and processors to give
// the stage a name in logs and errors.
type Namer interface {
	Name() string
}
