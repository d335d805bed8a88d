package cmd

import (
	"fmt"
	"log/slog"

	"github.com/SaiNageswarS/NurixLearn/pkg/channels/gochannel"
	"github.com/SaiNageswarS/NurixLearn/pkg/channels/kafka"
	"github.com/SaiNageswarS/NurixLearn/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus creates the event bus for provider ("gochannel" or "kafka").
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, kafka.ParseBrokers(brokers), "nurix")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
