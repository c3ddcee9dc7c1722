package cmd

import (
	"fmt"
	"log/slog"

	"github.com/BolajiAyodeji/lightning/pkg/channels/gochannel"
	"github.com/BolajiAyodeji/lightning/pkg/channels/kafka"
	"github.com/BolajiAyodeji/lightning/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus creates an event bus instance based on the provider.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "lightning")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
