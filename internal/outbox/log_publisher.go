package outbox

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes messages to the log instead of a broker. It backs the
// single-process setup where no broker is configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger.WithField("component", "log-publisher")}
}

func (p *LogPublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"key":     key,
		"payload": string(payload),
	}).Info("outbox message published")
	return nil
}
