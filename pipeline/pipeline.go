package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Pipeline implements a linear chain of stages connected by unbounded
// point-to-point queues. The last stage of every run is the Sink passed to
// Process.
type Pipeline struct {
	stages []StageRunner
	logger logrus.FieldLogger
}

// New returns a new pipeline instance where input payloads will traverse each
// one of the specified stages, in order, before reaching the sink.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{
		stages: stages,
		logger: discardLogger(),
	}
}

// WithLogger sets the logger used for stage lifecycle events.
func (p *Pipeline) WithLogger(logger logrus.FieldLogger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Process reads the contents of source, sends them through every stage of
// the pipeline and directs the results to sink. It blocks until every stage
// has terminated and returns the failures of all stages that did not shut
// down cleanly, or nil.
func (p *Pipeline) Process(ctx context.Context, source Source, sink Sink) error {
	var (
		runID     = uuid.New()
		log       = p.logger.WithField("run_id", runID.String())
		numStages = len(p.stages) + 1
		outcomes  = make([]error, numStages)
		producers = make([]*Producer, numStages)
		consumers = make([]*Consumer, numStages)
		wg        sync.WaitGroup
	)

	for i := 0; i < numStages; i++ {
		producers[i], consumers[i] = NewQueue()
	}

	for i := 0; i < len(p.stages); i++ {
		params := &workerParams{
			stage: i,
			name:  stageName(p.stages[i], i),
			inQ:   consumers[i],
			outQ:  producers[i+1],
		}

		wg.Add(1)
		go func(runner StageRunner, params *workerParams) {
			defer wg.Done()
			outcomes[params.stage] = runWorker(log, params, func() error {
				return runner.Run(ctx, params)
			})
		}(p.stages[i], params)
	}

	sinkParams := &workerParams{
		stage: numStages - 1,
		name:  "sink",
		inQ:   consumers[numStages-1],
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[sinkParams.stage] = runWorker(log, sinkParams, func() error {
			return sinkWorker(ctx, sink, sinkParams)
		})
	}()

	sourceErr := sourceWorker(ctx, source, producers[0])
	wg.Wait()

	err := collectOutcomes(sourceErr, outcomes)
	if err != nil {
		log.WithError(err).Debug("pipeline terminated with failures")
	} else {
		log.Debug("pipeline terminated cleanly")
	}
	return err
}

// runWorker drives a single stage and releases its queue endpoints once the
// stage terminates so that closure propagates to both neighbours.
func runWorker(log logrus.FieldLogger, params *workerParams, run func() error) error {
	log = log.WithFields(logrus.Fields{"stage": params.stage, "name": params.name})
	log.Debug("stage started")

	defer func() {
		params.inQ.Close()
		if params.outQ != nil {
			params.outQ.Close()
		}
	}()

	err := run()
	if err == nil {
		err = errors.New("stage exited without an outcome")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = processFailure(err)
	}
	stageErr.Stage = params.stage
	stageErr.Name = params.name

	log.WithFields(logrus.Fields{
		"kind":      stageErr.Kind.String(),
		"received":  params.received,
		"forwarded": params.forwarded,
	}).Debug("stage terminated")
	return stageErr
}

// sinkWorker implements the terminal stage: it hands every payload to the
// sink until its inbound queue closes.
func sinkWorker(ctx context.Context, sink Sink, params *workerParams) error {
	for {
		payload, err := params.Input().Receive(ctx)
		if err != nil {
			return receiveFailure(err)
		}
		params.received++

		if err := sink.Consume(ctx, payload); err != nil {
			payload.MarkAsProcessed()
			return processFailure(fmt.Errorf("sink: %w", err))
		}
		payload.MarkAsProcessed()
	}
}

// sourceWorker injects the source contents into the first queue and then
// releases the driver's producer handle.
func sourceWorker(ctx context.Context, source Source, out *Producer) error {
	defer out.Close()

	for source.Next(ctx) {
		payload := source.Payload()
		if err := out.Send(payload); err != nil {
			payload.MarkAsProcessed()
			return &StageError{Stage: sourceStage, Name: "source", Kind: KindSend, Err: err}
		}
	}

	if err := source.Error(); err != nil {
		return &StageError{Stage: sourceStage, Name: "source", Kind: KindProcess, Err: fmt.Errorf("pipeline source: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: sourceStage, Name: "source", Kind: KindCanceled, Err: err}
	}
	return nil
}

// collectOutcomes walks the stage outcomes in pipeline order. A receive
// failure on a closed queue is a clean shutdown only if everything upstream
// of the stage shut down cleanly as well.
func collectOutcomes(sourceErr error, outcomes []error) error {
	var err error
	upstreamClean := sourceErr == nil
	if sourceErr != nil {
		err = multierror.Append(err, sourceErr)
	}

	for _, outcome := range outcomes {
		var stageErr *StageError
		if errors.As(outcome, &stageErr) && stageErr.IsClosed() {
			if upstreamClean {
				continue
			}
			stageErr.Err = fmt.Errorf("%w: %w", ErrUpstreamClosed, stageErr.Err)
		}

		upstreamClean = false
		err = multierror.Append(err, outcome)
	}

	return err
}

func stageName(runner StageRunner, index int) string {
	if n, ok := runner.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("stage-%d", index)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
