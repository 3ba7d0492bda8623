package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// MemoryRepository keeps everything in process memory. Returned values are
// copies, so callers never alias stored rows.
type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[int64]models.User
	reports   map[int64]models.AnalyticalReport
	purchases map[int64]models.Purchase
	nextUser  int64
	nextRep   int64
	nextPurch int64
	now       func() time.Time
}

// NewMemoryRepository returns a store seeded with SampleReports.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{
		users:     make(map[int64]models.User),
		reports:   make(map[int64]models.AnalyticalReport),
		purchases: make(map[int64]models.Purchase),
		nextUser:  1,
		nextRep:   1,
		nextPurch: 1,
		now:       time.Now,
	}
	for _, rep := range SampleReports() {
		r.insertReport(rep)
	}
	return r
}

func (r *MemoryRepository) insertReport(rep models.AnalyticalReport) models.AnalyticalReport {
	rep.ID = r.nextRep
	r.nextRep++
	rep.CreatedAt = r.now()
	r.reports[rep.ID] = rep
	return rep
}

func (r *MemoryRepository) findUser(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *MemoryRepository) GetUser(_ context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return u.Username == username })
}

func (r *MemoryRepository) GetUserByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	return r.findUser(func(u models.User) bool {
		return customerID != "" && models.StringValue(u.StripeCustomerID) == customerID
	})
}

func (r *MemoryRepository) usernameTaken(username string) bool {
	for _, u := range r.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateUser(_ context.Context, username, passwordHash, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(username) {
		return nil, apperr.New(apperr.ErrConflict, "record already exists")
	}
	u := models.User{
		ID:           r.nextUser,
		Username:     username,
		PasswordHash: passwordHash,
		Email:        models.StringPtr(email),
		CreatedAt:    r.now(),
	}
	r.nextUser++
	r.users[u.ID] = u
	return &u, nil
}

func (r *MemoryRepository) UpsertDiscordUser(_ context.Context, du models.DiscordUser) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if models.StringValue(u.DiscordID) != du.DiscordID {
			continue
		}
		u.DiscordUsername = models.StringPtr(du.DiscordUsername)
		u.DiscordAvatar = models.StringPtr(du.DiscordAvatar)
		if du.Email != "" {
			u.Email = models.StringPtr(du.Email)
		}
		u.IsServerMember = du.IsServerMember
		r.users[id] = u
		return &u, nil
	}

	u := models.User{
		ID:              r.nextUser,
		Username:        DiscordUsername(du.DiscordID),
		Email:           models.StringPtr(du.Email),
		DiscordID:       models.StringPtr(du.DiscordID),
		DiscordUsername: models.StringPtr(du.DiscordUsername),
		DiscordAvatar:   models.StringPtr(du.DiscordAvatar),
		IsServerMember:  du.IsServerMember,
		CreatedAt:       r.now(),
	}
	r.nextUser++
	r.users[u.ID] = u
	return &u, nil
}

func (r *MemoryRepository) update(userID int64, fn func(*models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	fn(&u)
	r.users[userID] = u
	return &u, nil
}

func (r *MemoryRepository) UpdateStripeCustomerID(_ context.Context, userID int64, customerID string) (*models.User, error) {
	return r.update(userID, func(u *models.User) {
		u.StripeCustomerID = models.StringPtr(customerID)
	})
}

func (r *MemoryRepository) UpdateSubscription(_ context.Context, userID int64, s models.SubscriptionState, vip bool) (*models.User, error) {
	return r.update(userID, func(u *models.User) {
		u.StripeSubscriptionID = models.StringPtr(s.ID)
		u.SubscriptionStatus = models.StringPtr(s.Status)
		if s.CurrentPeriodEnd.IsZero() {
			u.CurrentPeriodEnd = nil
		} else {
			end := s.CurrentPeriodEnd
			u.CurrentPeriodEnd = &end
		}
		u.CancelAtPeriodEnd = s.CancelAtPeriodEnd
		amount := s.NextPaymentAmount
		u.NextPaymentAmount = &amount
		u.IsVIPMember = vip
	})
}

func (r *MemoryRepository) listReports(match func(models.AnalyticalReport) bool) []models.AnalyticalReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.AnalyticalReport{}
	for _, rep := range r.reports {
		if match(rep) {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) ListReports(_ context.Context) ([]models.AnalyticalReport, error) {
	return r.listReports(func(models.AnalyticalReport) bool { return true }), nil
}

func (r *MemoryRepository) ListFreeSampleReports(_ context.Context) ([]models.AnalyticalReport, error) {
	return r.listReports(func(rep models.AnalyticalReport) bool { return rep.IsFreeSample }), nil
}

func (r *MemoryRepository) GetReport(_ context.Context, id int64) (*models.AnalyticalReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &rep, nil
}

func (r *MemoryRepository) CreateReport(_ context.Context, in models.AnalyticalReport) (*models.AnalyticalReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.insertReport(in)
	return &rep, nil
}

func (r *MemoryRepository) UpdateReportFileURL(_ context.Context, id int64, fileURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return apperr.ErrNotFound
	}
	rep.FileURL = fileURL
	r.reports[id] = rep
	return nil
}

func (r *MemoryRepository) CreatePurchase(_ context.Context, p models.Purchase) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.purchaseByIntent(p.StripePaymentIntentID); existing != nil {
		return existing, nil
	}
	if _, ok := r.reports[p.ReportID]; !ok {
		return nil, apperr.ErrNotFound
	}
	p.ID = r.nextPurch
	r.nextPurch++
	p.PurchasedAt = r.now()
	r.purchases[p.ID] = p
	return &p, nil
}

// purchaseByIntent expects r.mu to be held.
func (r *MemoryRepository) purchaseByIntent(paymentIntentID string) *models.Purchase {
	for _, p := range r.purchases {
		if p.StripePaymentIntentID == paymentIntentID {
			return &p
		}
	}
	return nil
}

func (r *MemoryRepository) GetPurchaseByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p := r.purchaseByIntent(paymentIntentID); p != nil {
		return p, nil
	}
	return nil, apperr.ErrNotFound
}

func (r *MemoryRepository) ListUserPurchases(_ context.Context, userID int64) ([]models.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Purchase{}
	for _, p := range r.purchases {
		if p.UserID != nil && *p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryRepository) HasUserPurchasedReport(ctx context.Context, userID, reportID int64) (bool, error) {
	purchases, _ := r.ListUserPurchases(ctx, userID)
	for _, p := range purchases {
		if p.ReportID == reportID {
			return true, nil
		}
	}
	return false, nil
}

// PurchaseCount is the number of stored purchases.
func (r *MemoryRepository) PurchaseCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.purchases)
}

// UserCount is the number of stored users.
func (r *MemoryRepository) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
