package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type intPayload struct {
	val       int
	processed bool
}

func (p *intPayload) MarkAsProcessed() { p.processed = true }

type sliceSource struct {
	index    int
	payloads []*intPayload
	err      error
}

func newSliceSource(n, base int) *sliceSource {
	s := &sliceSource{index: -1}
	for i := 0; i < n; i++ {
		s.payloads = append(s.payloads, &intPayload{val: base + i})
	}
	return s
}

func (s *sliceSource) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	s.index++
	return s.index < len(s.payloads)
}

func (s *sliceSource) Payload() Payload { return s.payloads[s.index] }
func (s *sliceSource) Error() error     { return s.err }

// endlessSource produces payloads until the pipeline stops accepting them.
type endlessSource struct{ next int }

func (s *endlessSource) Next(context.Context) bool { s.next++; return true }
func (s *endlessSource) Payload() Payload          { return &intPayload{val: s.next} }
func (s *endlessSource) Error() error              { return nil }

type collectingSink struct {
	mu   sync.Mutex
	vals []int
	err  error
}

func (s *collectingSink) Consume(_ context.Context, p Payload) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.vals = append(s.vals, p.(*intPayload).val)
	s.mu.Unlock()
	return nil
}

func (s *collectingSink) values() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.vals...)
}

func passThrough() Processor {
	return ProcessorFunc(func(_ context.Context, p Payload) (Payload, error) {
		return p, nil
	})
}

func failOn(val int) Processor {
	return ProcessorFunc(func(_ context.Context, p Payload) (Payload, error) {
		if p.(*intPayload).val >= val {
			return nil, errBoom
		}
		return p, nil
	})
}

func stageErrors(t *testing.T, err error) []*StageError {
	t.Helper()

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)

	var out []*StageError
	for _, e := range merr.Errors {
		var stageErr *StageError
		require.ErrorAs(t, e, &stageErr)
		out = append(out, stageErr)
	}
	return out
}

func findStage(errs []*StageError, stage int) *StageError {
	for _, e := range errs {
		if e.Stage == stage {
			return e
		}
	}
	return nil
}

func processWithTimeout(t *testing.T, p *Pipeline, ctx context.Context, src Source, sink Sink) error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Process(ctx, src, sink) }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not shut down in time")
		return nil
	}
}

func TestPipeline_PreservesOrder(t *testing.T) {
	t.Parallel()

	src := newSliceSource(1000, 0)
	sink := new(collectingSink)
	p := New(FIFO(passThrough()), FIFO(passThrough()))

	err := processWithTimeout(t, p, context.Background(), src, sink)
	require.NoError(t, err)

	got := sink.values()
	require.Len(t, got, 1000)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	for _, payload := range src.payloads {
		assert.True(t, payload.processed)
	}
}

func TestPipeline_TransformAndDrop(t *testing.T) {
	t.Parallel()

	double := ProcessorFunc(func(_ context.Context, p Payload) (Payload, error) {
		p.(*intPayload).val *= 2
		return p, nil
	})
	dropOdd := ProcessorFunc(func(_ context.Context, p Payload) (Payload, error) {
		if p.(*intPayload).val%2 != 0 {
			return nil, nil
		}
		return p, nil
	})

	src := newSliceSource(6, 0)
	sink := new(collectingSink)
	err := processWithTimeout(t, New(FIFO(dropOdd), FIFO(double)), context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4, 8}, sink.values())
	for _, payload := range src.payloads {
		assert.True(t, payload.processed, "payload %d", payload.val)
	}
}

func TestPipeline_SinkOnly(t *testing.T) {
	t.Parallel()

	sink := new(collectingSink)
	err := processWithTimeout(t, New(), context.Background(), newSliceSource(3, 10), sink)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, sink.values())
}

func TestPipeline_EmptySource(t *testing.T) {
	t.Parallel()

	sink := new(collectingSink)
	err := processWithTimeout(t, New(FIFO(passThrough()), FIFO(passThrough())), context.Background(), newSliceSource(0, 0), sink)
	require.NoError(t, err)
	assert.Empty(t, sink.values())
}

func TestPipeline_ProcessorFailure(t *testing.T) {
	t.Parallel()

	sink := new(collectingSink)
	p := New(FIFO(passThrough()), FIFO(failOn(3)))

	err := processWithTimeout(t, p, context.Background(), newSliceSource(10, 0), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	errs := stageErrors(t, err)
	failed := findStage(errs, 1)
	require.NotNil(t, failed)
	assert.Equal(t, KindProcess, failed.Kind)
	assert.Equal(t, "stage-1", failed.Name)

	sinkErr := findStage(errs, 2)
	require.NotNil(t, sinkErr, "sink closure behind a failed stage must be reported")
	assert.Equal(t, KindReceive, sinkErr.Kind)
	assert.ErrorIs(t, sinkErr, ErrUpstreamClosed)
	assert.ErrorIs(t, sinkErr, ErrQueueClosed)

	assert.Equal(t, []int{0, 1, 2}, sink.values())
}

func TestPipeline_MidStreamDisconnectSurfacesSendFailure(t *testing.T) {
	t.Parallel()

	sink := new(collectingSink)
	p := New(FIFO(passThrough()), FIFO(failOn(0)))

	err := processWithTimeout(t, p, context.Background(), new(endlessSource), sink)
	require.Error(t, err)

	errs := stageErrors(t, err)
	upstream := findStage(errs, 0)
	require.NotNil(t, upstream)
	assert.Equal(t, KindSend, upstream.Kind)
	assert.ErrorIs(t, upstream, ErrConsumerGone)

	source := findStage(errs, sourceStage)
	require.NotNil(t, source)
	assert.Equal(t, KindSend, source.Kind)
	assert.Equal(t, "source", source.Name)

	assert.Empty(t, sink.values())
}

func TestPipeline_SinkFailure(t *testing.T) {
	t.Parallel()

	src := newSliceSource(5, 0)
	sink := &collectingSink{err: errBoom}
	err := processWithTimeout(t, New(FIFO(passThrough())), context.Background(), src, sink)
	require.Error(t, err)

	for _, payload := range src.payloads {
		assert.True(t, payload.processed, "payload %d", payload.val)
	}

	errs := stageErrors(t, err)
	sinkErr := findStage(errs, 1)
	require.NotNil(t, sinkErr)
	assert.Equal(t, KindProcess, sinkErr.Kind)
	assert.Equal(t, "sink", sinkErr.Name)
	assert.ErrorIs(t, sinkErr, errBoom)
}

func TestPipeline_FailuresLeftToCaller(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	p := New(FIFO(failOn(0))).WithLogger(logger)
	err := processWithTimeout(t, p, context.Background(), newSliceSource(3, 0), new(collectingSink))
	require.Error(t, err)

	require.NotEmpty(t, hook.AllEntries())
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.DebugLevel, entry.Level, "entry %q", entry.Message)
	}
	assert.Equal(t, "pipeline terminated with failures", hook.LastEntry().Message)
}

func TestPipeline_SourceFailure(t *testing.T) {
	t.Parallel()

	src := newSliceSource(2, 0)
	src.err = errBoom
	sink := new(collectingSink)

	err := processWithTimeout(t, New(FIFO(passThrough())), context.Background(), src, sink)
	require.Error(t, err)

	errs := stageErrors(t, err)
	srcErr := findStage(errs, sourceStage)
	require.NotNil(t, srcErr)
	assert.Equal(t, KindProcess, srcErr.Kind)
	assert.ErrorIs(t, srcErr, errBoom)

	for _, stage := range []int{0, 1} {
		e := findStage(errs, stage)
		require.NotNil(t, e, "stage %d", stage)
		assert.ErrorIs(t, e, ErrUpstreamClosed)
	}

	// Messages injected before the failure are still delivered.
	assert.Equal(t, []int{0, 1}, sink.values())
}

func TestPipeline_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processWithTimeout(t, New(FIFO(passThrough())), ctx, newSliceSource(3, 0), new(collectingSink))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	for _, e := range stageErrors(t, err) {
		assert.Equal(t, KindCanceled, e.Kind, "stage %d", e.Stage)
	}
}

func TestPipeline_IsolatedInstances(t *testing.T) {
	t.Parallel()

	const n = 500
	var (
		wg    sync.WaitGroup
		sinks = []*collectingSink{new(collectingSink), new(collectingSink)}
		errs  = make([]error, 2)
	)

	for i := range sinks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := New(FIFO(passThrough()), FIFO(passThrough()))
			errs[i] = p.Process(context.Background(), newSliceSource(n, i*n), sinks[i])
		}(i)
	}
	wg.Wait()

	for i, sink := range sinks {
		require.NoError(t, errs[i])
		got := sink.values()
		require.Len(t, got, n)
		for j, v := range got {
			assert.Equal(t, i*n+j, v)
		}
	}
}

func TestPipeline_ReusableAcrossRuns(t *testing.T) {
	t.Parallel()

	p := New(FIFO(passThrough()))
	for run := 0; run < 3; run++ {
		sink := new(collectingSink)
		require.NoError(t, processWithTimeout(t, p, context.Background(), newSliceSource(4, run*10), sink))
		assert.Equal(t, []int{run * 10, run*10 + 1, run*10 + 2, run*10 + 3}, sink.values())
	}
}

type namedProcessor struct{ Processor }

func (namedProcessor) Name() string { return "inspect" }

func TestPipeline_StageNames(t *testing.T) {
	t.Parallel()

	p := New(FIFO(namedProcessor{failOn(0)}))
	err := processWithTimeout(t, p, context.Background(), newSliceSource(1, 0), new(collectingSink))
	require.Error(t, err)

	failed := findStage(stageErrors(t, err), 0)
	require.NotNil(t, failed)
	assert.Equal(t, "inspect", failed.Name)
	assert.Contains(t, failed.Error(), "pipeline stage 0 (inspect): process failure: boom")
}

func TestFIFO_SendFailure(t *testing.T) {
	t.Parallel()

	inTx, inRx := NewQueue()
	outTx, outRx := NewQueue()
	outRx.Close()

	payload := &intPayload{val: 1}
	require.NoError(t, inTx.Send(payload))

	params := &workerParams{stage: 0, inQ: inRx, outQ: outTx}
	err := FIFO(passThrough()).Run(context.Background(), params)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, KindSend, stageErr.Kind)
	assert.ErrorIs(t, err, ErrConsumerGone)
	assert.True(t, payload.processed)
	assert.Equal(t, 1, params.received)
	assert.Zero(t, params.forwarded)
}

func TestFIFO_ReceiveFailure(t *testing.T) {
	t.Parallel()

	inTx, inRx := NewQueue()
	outTx, outRx := NewQueue()
	require.NoError(t, inTx.Send(&intPayload{val: 5}))
	inTx.Close()

	params := &workerParams{inQ: inRx, outQ: outTx}
	err := FIFO(passThrough()).Run(context.Background(), params)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.True(t, stageErr.IsClosed())
	assert.Equal(t, 1, params.forwarded)

	got, err := outRx.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.(*intPayload).val)
}

func TestCollectOutcomes(t *testing.T) {
	t.Parallel()

	closed := func() error { return receiveFailure(ErrQueueClosed) }

	specs := []struct {
		descr     string
		sourceErr error
		outcomes  []error
		expFailed []int
	}{
		{
			descr:    "clean shutdown",
			outcomes: []error{closed(), closed(), closed()},
		},
		{
			descr:     "failure propagates closure downstream",
			outcomes:  []error{closed(), processFailure(errBoom), closed()},
			expFailed: []int{1, 2},
		},
		{
			descr:     "source failure",
			sourceErr: &StageError{Stage: sourceStage, Kind: KindProcess, Err: errBoom},
			outcomes:  []error{closed(), closed()},
			expFailed: []int{sourceStage, 0, 1},
		},
		{
			descr:     "send failure upstream of crashed stage",
			outcomes:  []error{sendFailure(ErrConsumerGone), processFailure(errBoom), closed()},
			expFailed: []int{0, 1, 2},
		},
	}

	for specIndex, spec := range specs {
		t.Run(fmt.Sprintf("%d-%s", specIndex, spec.descr), func(t *testing.T) {
			for i, o := range spec.outcomes {
				o.(*StageError).Stage = i
			}

			err := collectOutcomes(spec.sourceErr, spec.outcomes)
			if len(spec.expFailed) == 0 {
				assert.NoError(t, err)
				return
			}

			var got []int
			for _, e := range stageErrors(t, err) {
				got = append(got, e.Stage)
			}
			assert.Equal(t, spec.expFailed, got)
		})
	}
}
