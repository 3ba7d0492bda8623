package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/testutil"
)

const whsec = "whsec_test"

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	payload := testutil.StripeEvent(t, "evt_1", billing.EventCheckoutCompleted, map[string]any{
		"id":           "cs_1",
		"object":       "checkout.session",
		"mode":         "subscription",
		"subscription": "sub_1",
		"customer":     "cus_1",
		"metadata":     map[string]string{"userId": "12"},
	})

	ev, err := billing.ParseEvent(payload, testutil.SignStripePayload(payload, whsec), whsec)
	require.NoError(t, err)
	require.NotNil(t, ev.Checkout)
	assert.Equal(t, "evt_1", ev.ID)
	assert.True(t, ev.Checkout.IsSubscription())
	assert.Equal(t, "sub_1", ev.Checkout.SubscriptionID)
	assert.Equal(t, "cus_1", ev.Checkout.CustomerID)
	assert.Equal(t, int64(12), ev.Checkout.UserID)
}

func TestParseEvent_SubscriptionUpdated(t *testing.T) {
	end := time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)
	payload := testutil.StripeEvent(t, "evt_2", billing.EventSubscriptionUpdated, map[string]any{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               "past_due",
		"current_period_end":   end.Unix(),
		"cancel_at_period_end": true,
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "si_1", "quantity": 2, "price": map[string]any{"id": "price_1", "unit_amount": 5000}},
			},
		},
	})

	ev, err := billing.ParseEvent(payload, testutil.SignStripePayload(payload, whsec), whsec)
	require.NoError(t, err)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "sub_1", ev.Subscription.ID)
	assert.Equal(t, "cus_1", ev.Subscription.CustomerID)
	assert.Equal(t, "past_due", ev.Subscription.Status)
	assert.True(t, ev.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, end, ev.Subscription.CurrentPeriodEnd)
	assert.Equal(t, int64(10000), ev.Subscription.NextPaymentAmount)
}

func TestParseEvent_InvoiceFailed(t *testing.T) {
	payload := testutil.StripeEvent(t, "evt_3", billing.EventInvoicePaymentFailed, map[string]any{
		"id":           "in_1",
		"object":       "invoice",
		"customer":     "cus_9",
		"subscription": "sub_9",
	})

	ev, err := billing.ParseEvent(payload, testutil.SignStripePayload(payload, whsec), whsec)
	require.NoError(t, err)
	require.NotNil(t, ev.Invoice)
	assert.Equal(t, "cus_9", ev.Invoice.CustomerID)
	assert.Equal(t, "sub_9", ev.Invoice.SubscriptionID)
}

func TestParseEvent_UnknownTypeIsNotAnError(t *testing.T) {
	payload := testutil.StripeEvent(t, "evt_4", "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"})

	ev, err := billing.ParseEvent(payload, testutil.SignStripePayload(payload, whsec), whsec)
	require.NoError(t, err)
	assert.Nil(t, ev.Checkout)
	assert.Nil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
}

func TestParseEvent_BadSignature(t *testing.T) {
	payload := testutil.StripeEvent(t, "evt_5", billing.EventCheckoutCompleted, map[string]any{"id": "cs_1"})

	_, err := billing.ParseEvent(payload, testutil.SignStripePayload(payload, "whsec_other"), whsec)
	assert.ErrorIs(t, err, apperr.ErrSignature)

	_, err = billing.ParseEvent(payload, "", whsec)
	assert.ErrorIs(t, err, apperr.ErrSignature)

	_, err = billing.ParseEvent(payload, testutil.SignStripePayload(payload, whsec), "")
	assert.ErrorIs(t, err, apperr.ErrSignature)
}

func TestAmountFromPrice(t *testing.T) {
	tests := []struct {
		price string
		want  int64
		err   bool
	}{
		{"2980", 2980, false},
		{"2980.00", 2980, false},
		{"4979.6", 4980, false},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := billing.AmountFromPrice(tt.price)
		if tt.err {
			assert.ErrorIs(t, err, apperr.ErrValidation, tt.price)
			continue
		}
		require.NoError(t, err, tt.price)
		assert.Equal(t, tt.want, got, tt.price)
	}
}
