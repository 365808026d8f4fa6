package geostream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/iamleson98/geostream/message"
	"github.com/iamleson98/geostream/pipeline"
	"github.com/sirupsen/logrus"
)

// DefaultStages is the stage count used when Config.Stages is zero.
const DefaultStages = 3

type Config struct {
	// Stages is the total number of stages, including the terminal one.
	Stages int

	// Output receives every message that reaches the terminal stage.
	Output Output

	Logger logrus.FieldLogger
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Stages == 0 {
		cfg.Stages = DefaultStages
	}
	if cfg.Stages < 1 {
		err = multierror.Append(err, fmt.Errorf("invalid stage count %d: at least one stage is required", cfg.Stages))
	}
	if cfg.Output == nil {
		err = multierror.Append(err, errors.New("output has not been provided"))
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return err
}

// Geostream runs message streams through a chain of inspection stages into
// a terminal printer.
type Geostream struct {
	cfg Config
}

func New(cfg Config) (*Geostream, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("geostream config validation failed: %w", err)
	}
	return &Geostream{cfg: cfg}, nil
}

// assemblePipeline builds a fresh chain of stages; inspectors keep per-run
// ordering state.
func (g *Geostream) assemblePipeline() *pipeline.Pipeline {
	stages := make([]pipeline.StageRunner, 0, g.cfg.Stages-1)
	for i := 1; i < g.cfg.Stages; i++ {
		stages = append(stages, pipeline.FIFO(newInspector(i, g.cfg.Logger)))
	}
	return pipeline.New(stages...).WithLogger(g.cfg.Logger)
}

// Run sends every message of it through the pipeline and returns the number
// of messages emitted by the terminal stage.
func (g *Geostream) Run(ctx context.Context, it message.Iterator) (int, error) {
	sink := &printer{out: g.cfg.Output}
	err := g.assemblePipeline().Process(ctx, &messageSource{it: it}, sink)
	return sink.count, err
}

// RunMessages is a convenience wrapper around Run for in-memory streams.
func (g *Geostream) RunMessages(ctx context.Context, msgs ...message.Message) (int, error) {
	return g.Run(ctx, message.FromSlice(msgs...))
}

// ScenarioA returns the default message stream: a two-point line.
func ScenarioA() []message.Message {
	return []message.Message{
		message.LineStart{},
		message.NewPoint(1, 2, 25),
		message.NewPoint(10, 20, 250),
		message.LineEnd{},
	}
}
