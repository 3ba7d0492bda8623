// Package entitlement keeps the Stripe subscription status, the local VIP
// flag and the Discord VIP role in agreement. Every trigger funnels into
// Reconcile.
package entitlement

import (
	"context"
	"errors"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/models"
)

// RolePolicy decides when Reconcile touches the Discord role.
type RolePolicy int

const (
	// RoleOnChange syncs the role only when the VIP flag flips.
	RoleOnChange RolePolicy = iota
	// RoleAlways syncs the role on every call.
	RoleAlways
)

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID int64, s models.SubscriptionState, vip bool) (*models.User, error)
}

type SubscriptionSource interface {
	GetSubscription(ctx context.Context, id string) (models.SubscriptionState, error)
}

type RoleManager interface {
	GrantVIP(ctx context.Context, discordID string) error
	RevokeVIP(ctx context.Context, discordID string) error
}

// Notifier is told about every user whose entitlement changed.
type Notifier interface {
	NotifyEntitlement(u *models.User)
}

type Service struct {
	users    UserStore
	subs     SubscriptionSource
	roles    RoleManager
	notifier Notifier
	log      logging.Logger
}

// NewService wires the service. roles and notifier may be nil.
func NewService(users UserStore, subs SubscriptionSource, roles RoleManager, notifier Notifier, log logging.Logger) *Service {
	return &Service{users: users, subs: subs, roles: roles, notifier: notifier, log: log}
}

// Reconcile writes state and vip onto u when they differ from what is
// stored, then applies the Discord role according to policy. Role failures
// are logged and never returned. The returned user is the stored row.
func (s *Service) Reconcile(ctx context.Context, u *models.User, state models.SubscriptionState, vip bool, policy RolePolicy) (*models.User, error) {
	wasVIP := u.IsVIPMember
	changed := !u.Matches(state, vip)

	out := u
	if changed {
		updated, err := s.users.UpdateSubscription(ctx, u.ID, state, vip)
		if err != nil {
			return nil, err
		}
		out = updated
		s.log.Info(ctx, "entitlement updated",
			"user_id", u.ID,
			"status", state.Status,
			"vip", vip,
			"was_vip", wasVIP,
		)
	}

	if policy == RoleAlways || wasVIP != vip {
		s.syncRole(ctx, out, vip)
	}
	if changed && s.notifier != nil {
		s.notifier.NotifyEntitlement(out)
	}
	return out, nil
}

func (s *Service) syncRole(ctx context.Context, u *models.User, vip bool) {
	discordID := models.StringValue(u.DiscordID)
	if s.roles == nil || discordID == "" {
		return
	}

	var err error
	if vip {
		err = s.roles.GrantVIP(ctx, discordID)
	} else {
		err = s.roles.RevokeVIP(ctx, discordID)
	}
	if err != nil {
		s.log.Error(ctx, "discord role sync failed", "user_id", u.ID, "discord_id", discordID, "grant", vip, "error", err)
	}
}

// CheckoutCompleted handles a finished subscription checkout. The user is
// marked VIP and granted the role regardless of the fetched status.
func (s *Service) CheckoutCompleted(ctx context.Context, c *billing.CheckoutCompleted) error {
	if c == nil || !c.IsSubscription() || c.UserID == 0 {
		s.log.Debug(ctx, "checkout ignored: not a subscription checkout")
		return nil
	}

	u, err := s.users.GetUser(ctx, c.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn(ctx, "checkout for unknown user", "user_id", c.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	state, err := s.subs.GetSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return err
	}
	_, err = s.Reconcile(ctx, u, state, true, RoleAlways)
	return err
}

// SubscriptionUpdated mirrors the new status. VIP follows the status.
func (s *Service) SubscriptionUpdated(ctx context.Context, state models.SubscriptionState) error {
	u, err := s.userByCustomer(ctx, state.CustomerID)
	if err != nil || u == nil {
		return err
	}
	_, err = s.Reconcile(ctx, u, state, models.Entitled(state.Status), RoleAlways)
	return err
}

// SubscriptionDeleted clears VIP and revokes the role.
func (s *Service) SubscriptionDeleted(ctx context.Context, state models.SubscriptionState) error {
	u, err := s.userByCustomer(ctx, state.CustomerID)
	if err != nil || u == nil {
		return err
	}
	if state.Status == "" {
		state.Status = models.StatusCanceled
	}
	_, err = s.Reconcile(ctx, u, state, false, RoleAlways)
	return err
}

// PaymentFailed marks the subscription past_due, clears VIP and revokes the
// role.
func (s *Service) PaymentFailed(ctx context.Context, inv *billing.InvoiceFailed) error {
	if inv == nil || inv.SubscriptionID == "" {
		return nil
	}
	u, err := s.userByCustomer(ctx, inv.CustomerID)
	if err != nil || u == nil {
		return err
	}
	state := u.Subscription()
	state.ID = inv.SubscriptionID
	state.Status = models.StatusPastDue
	_, err = s.Reconcile(ctx, u, state, false, RoleAlways)
	return err
}

// SelfHeal checks the live subscription of u and corrects the stored row
// when it disagrees. Users without a subscription are returned as-is.
func (s *Service) SelfHeal(ctx context.Context, u *models.User) (*models.User, *models.SubscriptionState, error) {
	subID := models.StringValue(u.StripeSubscriptionID)
	if subID == "" {
		return u, nil, nil
	}

	state, err := s.subs.GetSubscription(ctx, subID)
	if err != nil {
		return u, nil, err
	}
	if state.CustomerID == "" {
		state.CustomerID = models.StringValue(u.StripeCustomerID)
	}

	out, err := s.Reconcile(ctx, u, state, models.Entitled(state.Status), RoleOnChange)
	if err != nil {
		return u, &state, err
	}
	return out, &state, nil
}

// HandleEvent dispatches a verified webhook event.
func (s *Service) HandleEvent(ctx context.Context, ev *billing.Event) error {
	switch ev.Type {
	case billing.EventCheckoutCompleted:
		return s.CheckoutCompleted(ctx, ev.Checkout)
	case billing.EventSubscriptionUpdated:
		if ev.Subscription == nil {
			return nil
		}
		return s.SubscriptionUpdated(ctx, *ev.Subscription)
	case billing.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return nil
		}
		return s.SubscriptionDeleted(ctx, *ev.Subscription)
	case billing.EventInvoicePaymentFailed:
		return s.PaymentFailed(ctx, ev.Invoice)
	default:
		s.log.Debug(ctx, "unhandled stripe event", "type", ev.Type, "event_id", ev.ID)
		return nil
	}
}

func (s *Service) userByCustomer(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, nil
	}
	u, err := s.users.GetUserByStripeCustomerID(ctx, customerID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn(ctx, "stripe event for unknown customer", "customer_id", customerID)
		return nil, nil
	}
	return u, err
}
