// Package events publishes market data events onto a message bus.
// EventPublisher implements internal/matching.Handler so the manager's
// synchronous callbacks fan out into asynchronous, durable notifications
// without the matching hot path ever blocking on I/O.
package events

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/ksuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// Envelope is the wire shape of every published event: a unique ID for
// idempotent consumers, the event kind, the symbol name, and an opaque
// payload. Level events carry the symbol name; order events leave Symbol
// empty and identify the symbol only by the SymbolID inside their payload.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher is the narrow surface of watermill's message.Publisher this
// package needs, so tests can substitute an in-memory gochannel publisher.
type Publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// EventPublisher adapts Manager events onto a watermill Publisher. Publish
// failures never propagate into the matching engine: they are absorbed by
// a gobreaker circuit breaker and logged, since losing a downstream
// notification must never roll back or block a completed match.
type EventPublisher struct {
	matching.BaseHandler

	topic     string
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// New constructs an EventPublisher publishing to topic via publisher,
// guarded by a circuit breaker named after the topic.
func New(topic string, publisher Publisher, logger *zap.Logger) *EventPublisher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "events-" + topic,
		MaxRequests: 4,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &EventPublisher{topic: topic, publisher: publisher, breaker: cb, logger: logger}
}

func (p *EventPublisher) publish(kind string, symbol lob.Symbol, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("marshal event payload failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	env := Envelope{ID: ksuid.New().String(), Kind: kind, Symbol: symbol.Name, Timestamp: time.Now(), Payload: body}
	envBody, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("marshal event envelope failed", zap.Error(err))
		return
	}

	msg := message.NewMessage(env.ID, envBody)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	if err != nil {
		p.logger.Warn("event publish failed", zap.String("kind", kind), zap.String("topic", p.topic), zap.Error(err))
	}
}

func (p *EventPublisher) OnAddOrder(o lob.Order)    { p.publish("order.added", lob.Symbol{ID: o.SymbolID}, o) }
func (p *EventPublisher) OnUpdateOrder(o lob.Order) { p.publish("order.updated", lob.Symbol{ID: o.SymbolID}, o) }
func (p *EventPublisher) OnDeleteOrder(o lob.Order) { p.publish("order.deleted", lob.Symbol{ID: o.SymbolID}, o) }

func (p *EventPublisher) OnExecuteOrder(o lob.Order, price, quantity uint64) {
	p.publish("order.executed", lob.Symbol{ID: o.SymbolID}, struct {
		Order    lob.Order `json:"order"`
		Price    uint64    `json:"price"`
		Quantity uint64    `json:"quantity"`
	}{o, price, quantity})
}

func (p *EventPublisher) OnAddLevel(sym lob.Symbol, level lob.Level, top bool) {
	p.publish("level.added", sym, struct {
		Level lob.Level `json:"level"`
		Top   bool      `json:"top"`
	}{level, top})
}

func (p *EventPublisher) OnUpdateLevel(sym lob.Symbol, level lob.Level, top bool) {
	p.publish("level.updated", sym, struct {
		Level lob.Level `json:"level"`
		Top   bool      `json:"top"`
	}{level, top})
}

func (p *EventPublisher) OnDeleteLevel(sym lob.Symbol, level lob.Level, top bool) {
	p.publish("level.deleted", sym, struct {
		Level lob.Level `json:"level"`
		Top   bool      `json:"top"`
	}{level, top})
}

var _ matching.Handler = (*EventPublisher)(nil)
