package models

import "time"

// We use 'db' tags for sqlx to map the snake_case columns to our Go fields,
// and camelCase 'json' tags because the web client reads these payloads as-is.

// Subscription statuses reported by Stripe that the backend cares about.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// User combines legacy local credentials with the Discord and Stripe identities.
type User struct {
	ID                   int64      `db:"id" json:"id"`
	Username             string     `db:"username" json:"username"`
	PasswordHash         string     `db:"password" json:"-"`
	Email                *string    `db:"email" json:"email"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripeCustomerId"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripeSubscriptionId"`
	SubscriptionStatus   *string    `db:"subscription_status" json:"subscriptionStatus"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end" json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	NextPaymentAmount    *int64     `db:"next_payment_amount" json:"nextPaymentAmount"`
	DiscordID            *string    `db:"discord_id" json:"discordId"`
	DiscordUsername      *string    `db:"discord_username" json:"discordUsername"`
	DiscordAvatar        *string    `db:"discord_avatar" json:"discordAvatar"`
	IsServerMember       bool       `db:"is_server_member" json:"isServerMember"`
	IsVIPMember          bool       `db:"is_vip_member" json:"isVipMember"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
}

// Entitled reports whether the stored subscription status grants VIP access.
func (u *User) Entitled() bool {
	return Entitled(StringValue(u.SubscriptionStatus))
}

// Subscription returns the subscription fields stored on the user row.
func (u *User) Subscription() SubscriptionState {
	s := SubscriptionState{
		ID:                StringValue(u.StripeSubscriptionID),
		CustomerID:        StringValue(u.StripeCustomerID),
		Status:            StringValue(u.SubscriptionStatus),
		CancelAtPeriodEnd: u.CancelAtPeriodEnd,
	}
	if u.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = *u.CurrentPeriodEnd
	}
	if u.NextPaymentAmount != nil {
		s.NextPaymentAmount = *u.NextPaymentAmount
	}
	return s
}

// Matches reports whether the row already holds exactly this subscription
// state and VIP flag, so that writing it would be a no-op.
func (u *User) Matches(s SubscriptionState, vip bool) bool {
	stored := u.Subscription()
	return u.IsVIPMember == vip &&
		stored.ID == s.ID &&
		stored.Status == s.Status &&
		stored.CancelAtPeriodEnd == s.CancelAtPeriodEnd &&
		stored.NextPaymentAmount == s.NextPaymentAmount &&
		stored.CurrentPeriodEnd.Unix() == s.CurrentPeriodEnd.Unix()
}

// DiscordUser is the profile data written by the OAuth callback.
type DiscordUser struct {
	DiscordID       string
	DiscordUsername string
	DiscordAvatar   string
	Email           string
	IsServerMember  bool
}

// SubscriptionState is the slice of a Stripe subscription mirrored onto users.
type SubscriptionState struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"-"`
	Status            string    `json:"status"`
	CurrentPeriodEnd  time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
	NextPaymentAmount int64     `json:"nextPaymentAmount"`
}

// Entitled is the single rule mapping a subscription status to VIP access.
func Entitled(status string) bool {
	return status == StatusActive
}

// AnalyticalReport is a purchasable PDF report.
type AnalyticalReport struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Price        string    `db:"price" json:"price"`
	FileURL      string    `db:"file_url" json:"fileUrl"`
	IsFreeSample bool      `db:"is_free_sample" json:"isFreeSample"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Purchase represents a single completed one-off payment.
type Purchase struct {
	ID                    int64     `db:"id" json:"id"`
	UserID                *int64    `db:"user_id" json:"userId"`
	ReportID              int64     `db:"report_id" json:"reportId"`
	StripePaymentIntentID string    `db:"stripe_payment_intent_id" json:"stripePaymentIntentId"`
	Amount                string    `db:"amount" json:"amount"`
	PurchasedAt           time.Time `db:"purchased_at" json:"purchasedAt"`
}

// Session binds an opaque cookie value to a user.
type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// StringValue dereferences a nullable column.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringPtr returns nil for the empty string so it is stored as NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
