// Package redis ItemEvents 事件总线操作
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"wordpilot/internal/shared/eventbus"
)

// PublishItemEvent 发布研究条目变更事件
func (s *Store) PublishItemEvent(ctx context.Context, projectID string, event *eventbus.ItemEvent) error {
	key := eventbus.KeyItemEvents + projectID

	args := &redis.XAddArgs{
		Stream: key,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"type":      string(event.Type),
			"item_id":   event.ItemID,
			"item_name": event.ItemName,
			"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish item event: %w", err)
	}

	event.ID = id
	log.Printf("[Redis/EventBus] Published item event: project=%s seq=%s type=%s", projectID, id, event.Type)
	return nil
}

// SubscribeItemEvents 订阅研究条目变更事件
func (s *Store) SubscribeItemEvents(ctx context.Context, projectID string) (<-chan *eventbus.ItemEvent, error) {
	key := eventbus.KeyItemEvents + projectID
	ch := make(chan *eventbus.ItemEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				log.Printf("[Redis/EventBus] Item event subscription error: %v", err)
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					event := &eventbus.ItemEvent{
						ID:        msg.ID,
						ProjectID: projectID,
					}
					if v, ok := msg.Values["type"].(string); ok {
						event.Type = eventbus.ItemEventType(v)
					}
					if v, ok := msg.Values["item_id"].(string); ok {
						event.ItemID = v
					}
					if v, ok := msg.Values["item_name"].(string); ok {
						event.ItemName = v
					}
					if ts, ok := msg.Values["timestamp"].(string); ok {
						if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
							event.Timestamp = t
						}
					}

					select {
					case ch <- event:
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}
