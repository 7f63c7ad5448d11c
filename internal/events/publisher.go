// Package events fans completed inspections out to a redis stream so
// dashboard consumers can follow the line without polling the database.
package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"xrayqc/api/internal/models"
)

const inspectionStream = "inspections:events"

type Publisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// PublishInspection emits one event per persisted log. Delivery is
// best-effort; the inspection itself never fails on a publish error.
func (p *Publisher) PublishInspection(ctx context.Context, log models.InspectionLog) error {
	if p == nil || p.client == nil {
		return nil
	}

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: inspectionStream,
		Values: map[string]any{
			"type":        "inspection",
			"log_id":      log.LogID,
			"detector_id": log.DetectorID,
			"verdict":     string(log.FinalVerdict),
			"confidence":  log.ConfidenceScore,
			"image_url":   log.ImageURL,
		},
	}).Result()
	return err
}
