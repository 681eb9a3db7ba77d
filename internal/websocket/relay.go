package websocket

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/model"
)

// EventsChannel carries job updates from worker processes to API processes.
const EventsChannel = "retrocast:job-events"

// RedisPublisher is used by standalone workers, which have no sockets of
// their own. Hub.Relay on the API side delivers what it publishes.
type RedisPublisher struct {
	redis   *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: rdb, channel: EventsChannel}
}

func (p *RedisPublisher) publish(jobID string, data []byte) {
	payload, err := json.Marshal(BroadcastMessage{JobID: jobID, Message: data})
	if err != nil {
		return
	}
	if err := p.redis.Publish(context.Background(), p.channel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to publish job event")
	}
}

func (p *RedisPublisher) BroadcastProgress(jobID string, progress int, stage model.ProcessingStage, info string) {
	if data, ok := encodeProgress(jobID, progress, stage, info); ok {
		p.publish(jobID, data)
	}
}

func (p *RedisPublisher) BroadcastComplete(jobID string, result interface{}) {
	if data, ok := encodeComplete(jobID, result); ok {
		p.publish(jobID, data)
	}
}

func (p *RedisPublisher) BroadcastError(jobID, code, message string) {
	if data, ok := encodeError(jobID, code, message); ok {
		p.publish(jobID, data)
	}
}

// Relay forwards published job events to local subscribers until ctx ends.
func (h *Hub) Relay(ctx context.Context, rdb *redis.Client) error {
	sub := rdb.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Info().Str("channel", EventsChannel).Msg("Relaying job events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var bm BroadcastMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil || bm.JobID == "" {
				log.Warn().Err(err).Msg("Ignoring malformed job event")
				continue
			}
			h.Publish(bm.JobID, bm.Message)
		}
	}
}
