// Command librespot-hook is installed as the device player's onevent hook.
// It converts the player's environment variables into a webhook delivery.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/logging"
)

const (
	defaultBridgeURL = "http://localhost:6681/librespot"
	requestTimeout   = 5 * time.Second
)

func main() {
	logger := logging.Setup(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "text"))

	payload, err := buildPayload(os.Getenv)
	if err != nil {
		logger.WithError(err).Error("Could not build event payload")
		os.Exit(1)
	}
	log := logger.WithFields(logrus.Fields{"event": *payload.Event, "track_id": *payload.TrackID})
	log.Info("Handling event update")

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := deliver(ctx, nil, envOr("BRIDGE_URL", defaultBridgeURL), payload); err != nil {
		log.WithError(err).Error("An error occurred while handling event")
		os.Exit(1)
	}
	log.Info("Successfully handled event")
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
