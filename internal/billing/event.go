package billing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// MaxPayloadBytes caps the webhook body read.
const MaxPayloadBytes = int64(65536)

// Event types acted on by the entitlement service.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// CheckoutCompleted carries a finished checkout session.
type CheckoutCompleted struct {
	Mode           string
	SubscriptionID string
	CustomerID     string
	UserID         int64
}

// IsSubscription reports whether the checkout started a subscription.
func (c *CheckoutCompleted) IsSubscription() bool {
	return c.Mode == string(stripe.CheckoutSessionModeSubscription) && c.SubscriptionID != ""
}

// InvoiceFailed carries a failed invoice payment.
type InvoiceFailed struct {
	CustomerID     string
	SubscriptionID string
}

// Event is a verified webhook event decoded into the fields we use. Exactly
// one of the payload pointers is set for known types.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutCompleted
	Subscription *models.SubscriptionState
	Invoice      *InvoiceFailed
}

// ParseEvent verifies the Stripe-Signature header and decodes payload. A bad
// signature yields apperr.ErrSignature; a well-signed but undecodable body
// yields apperr.ErrValidation.
func ParseEvent(payload []byte, header, secret string) (*Event, error) {
	if secret == "" {
		return nil, apperr.New(apperr.ErrSignature, "webhook secret not configured")
	}
	raw, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSignature, err, "webhook signature verification failed")
	}

	ev := &Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return ev, nil
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &sess); err != nil {
			return nil, decodeError(ev.Type, err)
		}
		ev.Checkout = checkoutFrom(&sess)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &sub); err != nil {
			return nil, decodeError(ev.Type, err)
		}
		state := SubscriptionStateFrom(&sub)
		ev.Subscription = &state
	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw.Data.Raw, &inv); err != nil {
			return nil, decodeError(ev.Type, err)
		}
		ev.Invoice = &InvoiceFailed{}
		if inv.Customer != nil {
			ev.Invoice.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			ev.Invoice.SubscriptionID = inv.Subscription.ID
		}
	}
	return ev, nil
}

func checkoutFrom(sess *stripe.CheckoutSession) *CheckoutCompleted {
	c := &CheckoutCompleted{Mode: string(sess.Mode)}
	if sess.Subscription != nil {
		c.SubscriptionID = sess.Subscription.ID
	}
	if sess.Customer != nil {
		c.CustomerID = sess.Customer.ID
	}
	if id, err := strconv.ParseInt(sess.Metadata["userId"], 10, 64); err == nil {
		c.UserID = id
	}
	return c
}

func decodeError(eventType string, err error) error {
	return apperr.Wrap(apperr.ErrValidation, err, fmt.Sprintf("invalid %s payload", eventType))
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
