package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// ActionChannels lists the channels an action event is published to.
func ActionChannels(kind models.ActionKind) []string {
	return []string{
		constants.PubSubChannelActions,                   // all actions
		constants.PubSubChannelKindPrefix + string(kind), // per kind
	}
}

// PublishAction fans the event out to every channel in one pipeline.
func (p *PubSubManager) PublishAction(ctx context.Context, ev *models.ActionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	for _, channel := range ActionChannels(ev.Kind) {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe delivers events on channel to handler until ctx is done.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler func(*models.ActionEvent)) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	p.logger.WithField("channel", channel).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.ActionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("skipping malformed action event")
				continue
			}
			handler(&ev)
		}
	}
}
