package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"github.com/strefethen/connect-bridge-go/internal/librespot"
)

// buildPayload reads the player's event environment. Fields that do not
// apply to the event kind are left unset.
func buildPayload(getenv func(string) string) (librespot.Payload, error) {
	event := getenv("PLAYER_EVENT")
	if event == "" {
		event = "none"
	}
	payload := librespot.Payload{
		Event:   lo.ToPtr(event),
		TrackID: lo.ToPtr(getenv("TRACK_ID")),
	}

	switch librespot.Kind(event) {
	case librespot.KindChange:
		payload.OldTrackID = lo.ToPtr(getenv("OLD_TRACK_ID"))
	case librespot.KindPlaying, librespot.KindPaused:
		duration, err := envInt(getenv, "DURATION_MS")
		if err != nil {
			return librespot.Payload{}, err
		}
		position, err := envInt(getenv, "POSITION_MS")
		if err != nil {
			return librespot.Payload{}, err
		}
		payload.DurationMS = &duration
		payload.PositionMS = &position
	case librespot.KindVolumeSet:
		volume, err := envInt(getenv, "VOLUME")
		if err != nil {
			return librespot.Payload{}, err
		}
		payload.Volume = &volume
	}
	return payload, nil
}

func envInt(getenv func(string) string, key string) (int, error) {
	raw := getenv(key)
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return val, nil
}

// deliver posts payload to the bridge and returns the error envelope's
// message when the bridge rejects it.
func deliver(ctx context.Context, client *http.Client, url string, payload librespot.Payload) error {
	if client == nil {
		client = http.DefaultClient
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope librespot.Envelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return fmt.Errorf("bridge returned %d: %d %s", resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
}
