package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/models"
)

// ErrMock is returned by fakes configured to fail.
var ErrMock = errors.New("mock failure")

// MockGateway implements billing.Gateway. Unset funcs return canned values.
type MockGateway struct {
	mu sync.Mutex

	CreateCustomerFunc      func(ctx context.Context, u *models.User) (string, error)
	CreateCheckoutFunc      func(ctx context.Context, req billing.CheckoutRequest) (*billing.Checkout, error)
	GetSubscriptionFunc     func(ctx context.Context, id string) (models.SubscriptionState, error)
	CancelAtPeriodEndFunc   func(ctx context.Context, id string) (models.SubscriptionState, error)
	CreatePaymentIntentFunc func(ctx context.Context, amount int64, reportID int64) (*billing.PaymentIntent, error)
	GetPaymentIntentFunc    func(ctx context.Context, id string) (*billing.PaymentIntent, error)

	Calls map[string]int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{Calls: make(map[string]int)}
}

func (m *MockGateway) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

// CallCount returns how many times method name was invoked.
func (m *MockGateway) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

func (m *MockGateway) CreateCustomer(ctx context.Context, u *models.User) (string, error) {
	m.record("CreateCustomer")
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, u)
	}
	return fmt.Sprintf("cus_%d", u.ID), nil
}

func (m *MockGateway) CreateSubscriptionCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.Checkout, error) {
	m.record("CreateSubscriptionCheckout")
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	return &billing.Checkout{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (m *MockGateway) GetSubscription(ctx context.Context, id string) (models.SubscriptionState, error) {
	m.record("GetSubscription")
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, id)
	}
	return ActiveSubscription(id, "cus_1"), nil
}

func (m *MockGateway) CancelAtPeriodEnd(ctx context.Context, id string) (models.SubscriptionState, error) {
	m.record("CancelAtPeriodEnd")
	if m.CancelAtPeriodEndFunc != nil {
		return m.CancelAtPeriodEndFunc(ctx, id)
	}
	s := ActiveSubscription(id, "cus_1")
	s.CancelAtPeriodEnd = true
	return s, nil
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, amount int64, reportID int64) (*billing.PaymentIntent, error) {
	m.record("CreatePaymentIntent")
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, amount, reportID)
	}
	return &billing.PaymentIntent{
		ID:           "pi_test_1",
		Status:       "requires_payment_method",
		ClientSecret: "pi_test_1_secret",
		Amount:       amount,
		Currency:     "jpy",
		Metadata:     map[string]string{"reportId": fmt.Sprint(reportID)},
	}, nil
}

func (m *MockGateway) GetPaymentIntent(ctx context.Context, id string) (*billing.PaymentIntent, error) {
	m.record("GetPaymentIntent")
	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, id)
	}
	return nil, ErrMock
}

// ActiveSubscription is a paid-up monthly subscription ending in 30 days.
func ActiveSubscription(id, customerID string) models.SubscriptionState {
	return models.SubscriptionState{
		ID:                id,
		CustomerID:        customerID,
		Status:            models.StatusActive,
		CurrentPeriodEnd:  time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second).UTC(),
		NextPaymentAmount: 10000,
	}
}

// MockRoles implements discord.RoleManager and records every call.
type MockRoles struct {
	mu      sync.Mutex
	Granted []string
	Revoked []string
	Err     error
}

func (m *MockRoles) GrantVIP(_ context.Context, discordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Granted = append(m.Granted, discordID)
	return m.Err
}

func (m *MockRoles) RevokeVIP(_ context.Context, discordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Revoked = append(m.Revoked, discordID)
	return m.Err
}

// MockAuthenticator implements discord.Authenticator.
type MockAuthenticator struct {
	ExchangeFunc func(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	Profile      models.DiscordUser
	ProfileErr   error
	GuildIDs     []string
	GuildsErr    error
}

func (m *MockAuthenticator) AuthCodeURL(redirectURI, state string) string {
	return "https://discord.com/api/oauth2/authorize?redirect_uri=" + redirectURI + "&state=" + state
}

func (m *MockAuthenticator) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code, redirectURI)
	}
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

func (m *MockAuthenticator) FetchProfile(context.Context, *oauth2.Token) (models.DiscordUser, error) {
	return m.Profile, m.ProfileErr
}

func (m *MockAuthenticator) FetchGuildIDs(context.Context, *oauth2.Token) ([]string, error) {
	return m.GuildIDs, m.GuildsErr
}

// MockNotifier records entitlement pushes.
type MockNotifier struct {
	mu    sync.Mutex
	Users []models.User
}

func (m *MockNotifier) NotifyEntitlement(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, *u)
}

// Count is the number of pushes so far.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Users)
}

// MockObjectStore is an in-memory object store.
type MockObjectStore struct {
	mu       sync.Mutex
	Objects  map[string][]byte
	Presigns []string
	Err      error
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Presigns = append(m.Presigns, key)
	return fmt.Sprintf("https://objects.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (m *MockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, ok := m.Objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, ErrMock)
	}
	return b, nil
}

func (m *MockObjectStore) Upload(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Objects[key] = body
	return nil
}

func (m *MockObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.Objects[key]
	return ok, nil
}
