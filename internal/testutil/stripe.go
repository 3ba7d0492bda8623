// Package testutil provides fakes and fixtures shared by package tests.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

// SignStripePayload builds a Stripe-Signature header for payload, signed now.
func SignStripePayload(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

// StripeEvent renders a webhook event envelope around object.
func StripeEvent(t *testing.T, id, eventType string, object any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-06-20",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal stripe event: %v", err)
	}
	return body
}
