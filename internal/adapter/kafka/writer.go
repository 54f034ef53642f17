// Package kafka publishes assembled panel rows for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

// Writer produces one message per panel row to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a producer for the configured topic.
func NewWriter(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// PublishPanel serializes and publishes every panel row in a single
// WriteMessages call.
func (w *Writer) PublishPanel(ctx context.Context, p *domain.Panel) error {
	stamp := w.clock.Now().UTC().Format(time.RFC3339)
	msgs, err := panelMessages(p, stamp)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish panel: %w", err)
	}
	w.logger.Info("panel published", "rows", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// panelRecord is the wire form of one region-year row.
type panelRecord struct {
	Reg      string              `json:"reg"`
	Year     int                 `json:"year"`
	Province string              `json:"province,omitempty"`
	Values   map[string]*float64 `json:"values"`
}

// panelMessages maps panel rows to Kafka messages keyed by "<reg>-<year>".
func panelMessages(p *domain.Panel, stamp string) ([]kafkago.Message, error) {
	rows := p.Rows()
	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		value, err := json.Marshal(panelRecord{
			Reg:      row.Reg,
			Year:     row.Year,
			Province: row.Province,
			Values:   row.Values,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize panel row %s-%d: %w", row.Reg, row.Year, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("%s-%d", row.Reg, row.Year)),
			Value: value,
			Headers: []kafkago.Header{
				{Key: "produced_at", Value: []byte(stamp)},
			},
		})
	}
	return msgs, nil
}
