package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"market-scanner/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes normalized listings to the topic the embedding and
// indexing stage consumes. The message key is the listing URL so replays
// compact to the latest scrape.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// NewKafkaSinkWithWriter builds a sink using a custom writer (tests).
func NewKafkaSinkWithWriter(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// Accept publishes one listing.
func (s *KafkaSink) Accept(ctx context.Context, l *models.Listing) error {
	payload, err := json.Marshal(listingMessage(l))
	if err != nil {
		return fmt.Errorf("kafka: marshal listing %q: %w", l.URL, err)
	}

	msg := kafka.Message{
		Key:   []byte(l.URL),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish listing %q: %w", l.URL, err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// listingMessage is the wire shape published for downstream consumers.
func listingMessage(l *models.Listing) map[string]any {
	return map[string]any{
		"source":       l.Source,
		"external_id":  l.ExternalID,
		"url":          l.URL,
		"title":        l.Title,
		"price":        l.Price,
		"currency":     l.Currency,
		"price_period": l.PricePeriod,
		"bedrooms":     l.Bedrooms,
		"bathrooms":    l.Bathrooms,
		"size_sqm":     l.SizeSqm,
		"rating":       l.Rating,
		"review_count": l.ReviewCount,
		"area":         l.Area,
		"address":      l.Address,
		"amenities":    l.Amenities,
		"scraped_at":   l.ScrapedAt,
	}
}
