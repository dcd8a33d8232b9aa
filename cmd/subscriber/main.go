// Command subscriber tails executed wallet actions from Redis.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/cache"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

func main() {
	addr := flag.String("redis", "localhost:6379", "redis address")
	kind := flag.String("kind", "", "only this action kind (compress | decompress | swap)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: *addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	channel := constants.PubSubChannelActions
	if *kind != "" {
		channel = cache.ActionChannels(models.ActionKind(*kind))[1]
	}

	pubsub := cache.NewPubSubManager(client, logger)
	logger.WithField("channel", channel).Info("subscriber running")
	err := pubsub.Subscribe(ctx, channel, func(ev *models.ActionEvent) {
		entry := logger.WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"owner":  ev.Owner,
			"mint":   ev.Mint,
			"amount": ev.Amount,
			"sig":    ev.Signature,
		})
		if ev.OutputMint != "" {
			entry = entry.WithField("to", ev.OutputMint)
		}
		if !ev.Success {
			entry.WithField("error", ev.Error).Warn("action failed")
			return
		}
		entry.Info("action confirmed")
	})
	if err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("subscription ended")
	}
	logger.Info("shutting down")
}
