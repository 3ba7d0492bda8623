package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/entitlement"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/middleware"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/repository"
)

// Client routes used around the VIP checkout.
const (
	vipMemberPath = "/vip-member"
	vipPath       = "/vip"
)

// SubscriptionHandler serves the VIP subscription lifecycle and the Stripe
// webhook.
type SubscriptionHandler struct {
	Users         repository.Repository
	Billing       billing.Gateway
	Entitlements  *entitlement.Service
	WebhookSecret string
	Log           logging.Logger
}

func (h *SubscriptionHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		fail(c, apperr.New(apperr.ErrUnauthorized, "Not authenticated"))
		return nil, false
	}
	user, err := h.Users.GetUser(c.Request.Context(), userID)
	if errors.Is(err, apperr.ErrNotFound) {
		fail(c, apperr.New(apperr.ErrUnauthorized, "Not authenticated"))
		return nil, false
	}
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return user, true
}

// Create starts a Stripe checkout for the monthly VIP plan.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	// 1. Already paying: send them to the member page.
	if user.IsVIPMember && user.Entitled() {
		c.JSON(http.StatusOK, gin.H{"redirect": vipMemberPath})
		return
	}

	// 2. Make sure the user has a Stripe customer.
	customerID := models.StringValue(user.StripeCustomerID)
	if customerID == "" {
		id, err := h.Billing.CreateCustomer(ctx, user)
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := h.Users.UpdateStripeCustomerID(ctx, user.ID, id); err != nil {
			fail(c, err)
			return
		}
		customerID = id
	}

	// 3. Hosted checkout. Entitlement is granted by the webhook, not here.
	base := baseURL(c)
	checkout, err := h.Billing.CreateSubscriptionCheckout(ctx, billing.CheckoutRequest{
		CustomerID: customerID,
		UserID:     user.ID,
		SuccessURL: base + vipMemberPath + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + vipPath,
	})
	if err != nil {
		fail(c, err)
		return
	}

	h.Log.Info(ctx, "vip checkout created", "user_id", user.ID, "session_id", checkout.SessionID)
	c.JSON(http.StatusOK, gin.H{"sessionId": checkout.SessionID, "url": checkout.URL})
}

// Cancel schedules the subscription to end with the current period.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	subID := models.StringValue(user.StripeSubscriptionID)
	if subID == "" {
		badRequest(c, "No active subscription found")
		return
	}

	state, err := h.Billing.CancelAtPeriodEnd(ctx, subID)
	if err != nil {
		fail(c, err)
		return
	}
	if state.CustomerID == "" {
		state.CustomerID = models.StringValue(user.StripeCustomerID)
	}
	if _, err := h.Entitlements.Reconcile(ctx, user, state, models.Entitled(state.Status), entitlement.RoleOnChange); err != nil {
		fail(c, err)
		return
	}

	h.Log.Info(ctx, "vip subscription set to cancel", "user_id", user.ID, "subscription_id", subID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Webhook verifies and applies a Stripe event.
func (h *SubscriptionHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, billing.MaxPayloadBytes))
	if err != nil {
		badRequest(c, "Error reading request body")
		return
	}

	ev, err := billing.ParseEvent(payload, c.GetHeader("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		h.Log.Warn(ctx, "stripe webhook rejected", "error", err)
		fail(c, err)
		return
	}

	if err := h.Entitlements.HandleEvent(ctx, ev); err != nil {
		h.Log.Error(ctx, "stripe webhook processing failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
