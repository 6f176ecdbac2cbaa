package events

import (
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// zapLoggerAdapter satisfies watermill.LoggerAdapter over a *zap.Logger.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a zapLoggerAdapter) fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a zapLoggerAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.logger.Error(msg, append(a.fields(f), zap.Error(err))...)
}
func (a zapLoggerAdapter) Info(msg string, f watermill.LogFields) { a.logger.Info(msg, a.fields(f)...) }
func (a zapLoggerAdapter) Debug(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}
func (a zapLoggerAdapter) Trace(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}
func (a zapLoggerAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return zapLoggerAdapter{logger: a.logger.With(a.fields(f)...)}
}

// NewNATSPublisher dials natsURL and returns a watermill Publisher backed
// by NATS core pub/sub, for fan-out of market event envelopes to
// downstream consumers (analytics, external feeds).
func NewNATSPublisher(natsURL string, logger *zap.Logger) (*wmnats.Publisher, error) {
	marshaler := &wmnats.NATSMarshaler{}
	return wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: []nats.Option{nats.Name("lobengine")},
			Marshaler:   marshaler,
		},
		zapLoggerAdapter{logger: logger},
	)
}
