package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// notifyTimeout bounds the webhook POST so a dead notification endpoint
// cannot stall the pacing interval.
const notifyTimeout = 10 * time.Second

// sendNotification posts a new-hit message to the configured webhook.
// Supported channels: slack, teams, discord. The message deliberately
// names only the host, never credentials.
func sendNotification(channel, webhook, host string) error {
	if webhook == "" {
		return fmt.Errorf("notification channel %q configured without a webhook URL", channel)
	}

	msg := fmt.Sprintf("Spraycharles identified a new potentially successful login against %s", host)

	var payload map[string]string
	switch channel {
	case "slack", "teams":
		payload = map[string]string{"text": msg}
	case "discord":
		payload = map[string]string{"content": msg}
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: notifyTimeout}
	resp, err := client.Post(webhook, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
