package geostream

import (
	"context"
	"fmt"

	"github.com/iamleson98/geostream/message"
	"github.com/iamleson98/geostream/pipeline"
	"github.com/sirupsen/logrus"
)

// inspector is an intermediate stage that looks at every message and
// forwards it unchanged.
type inspector struct {
	stage   int
	logger  logrus.FieldLogger
	lastSeq uint64
}

func newInspector(stage int, logger logrus.FieldLogger) *inspector {
	return &inspector{
		stage:  stage,
		logger: logger.WithField("stage", stage),
	}
}

func (i *inspector) Name() string {
	return fmt.Sprintf("inspect-%d", i.stage)
}

func (i *inspector) Process(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*eventPayload)

	if payload.Seq <= i.lastSeq {
		return nil, fmt.Errorf("message %d arrived after message %d", payload.Seq, i.lastSeq)
	}
	i.lastSeq = payload.Seq

	switch msg := payload.Msg.(type) {
	case message.EndPoint, message.PolygonStart, message.LineStart,
		message.LineEnd, message.PolygonEnd:
	case message.Point:
		i.logger.WithFields(logrus.Fields{
			"x":      msg.Coord.X(),
			"y":      msg.Coord.Y(),
			"marker": msg.Marker,
		}).Info("point entry")
	default:
		return nil, fmt.Errorf("inspect message %d: %w", payload.Seq, message.ErrUnknownVariant)
	}

	return payload, nil
}
