package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/migrations"
	"vanguard-platform/internal/models"
)

const userColumns = `id, username, password, email, stripe_customer_id, stripe_subscription_id,
	subscription_status, current_period_end, cancel_at_period_end, next_payment_amount,
	discord_id, discord_username, discord_avatar, is_server_member, is_vip_member, created_at`

const reportColumns = `id, title, description, price, file_url, is_free_sample, created_at`

const purchaseColumns = `id, user_id, report_id, stripe_payment_intent_id, amount, purchased_at`

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Connect opens the pgx-backed pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect error: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if err := gooseUp(ctx, db.DB); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// trimScale drops the zero fraction NUMERIC columns carry, so "2980.00"
// reads back as "2980" and "2980.50" as "2980.5".
func trimScale(amount string) string {
	if !strings.Contains(amount, ".") {
		return amount
	}
	amount = strings.TrimRight(amount, "0")
	return strings.TrimSuffix(amount, ".")
}

func trimReports(reports []models.AnalyticalReport) []models.AnalyticalReport {
	for i := range reports {
		reports[i].Price = trimScale(reports[i].Price)
	}
	return reports
}

func trimPurchases(purchases []models.Purchase) []models.Purchase {
	for i := range purchases {
		purchases[i].Amount = trimScale(purchases[i].Amount)
	}
	return purchases
}

func dbError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Wrap(apperr.ErrConflict, err, "record already exists")
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `username = $1`, username)
}

func (r *PostgresRepository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return r.getUser(ctx, `stripe_customer_id = $1`, customerID)
}

func (r *PostgresRepository) CreateUser(ctx context.Context, username, passwordHash, email string) (*models.User, error) {
	query := `INSERT INTO users (username, password, email)
	          VALUES ($1, $2, $3)
	          RETURNING ` + userColumns

	var u models.User
	if err := r.db.GetContext(ctx, &u, query, username, passwordHash, models.StringPtr(email)); err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

// UpsertDiscordUser creates the user on first login and refreshes the profile
// fields afterwards. The VIP flag is never touched here.
func (r *PostgresRepository) UpsertDiscordUser(ctx context.Context, du models.DiscordUser) (*models.User, error) {
	query := `INSERT INTO users (username, password, email, discord_id, discord_username, discord_avatar, is_server_member)
	          VALUES ($1, '', $2, $3, $4, $5, $6)
	          ON CONFLICT (discord_id) DO UPDATE SET
	              discord_username = EXCLUDED.discord_username,
	              discord_avatar   = EXCLUDED.discord_avatar,
	              email            = COALESCE(EXCLUDED.email, users.email),
	              is_server_member = EXCLUDED.is_server_member
	          RETURNING ` + userColumns

	var u models.User
	err := r.db.GetContext(ctx, &u, query,
		DiscordUsername(du.DiscordID),
		models.StringPtr(du.Email),
		du.DiscordID,
		models.StringPtr(du.DiscordUsername),
		models.StringPtr(du.DiscordAvatar),
		du.IsServerMember,
	)
	if err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

func (r *PostgresRepository) UpdateStripeCustomerID(ctx context.Context, userID int64, customerID string) (*models.User, error) {
	query := `UPDATE users SET stripe_customer_id = $1
	          WHERE id = $2
	          RETURNING ` + userColumns

	var u models.User
	if err := r.db.GetContext(ctx, &u, query, customerID, userID); err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

func (r *PostgresRepository) UpdateSubscription(ctx context.Context, userID int64, s models.SubscriptionState, vip bool) (*models.User, error) {
	query := `UPDATE users SET
	              stripe_subscription_id = $1,
	              subscription_status    = $2,
	              current_period_end     = $3,
	              cancel_at_period_end   = $4,
	              next_payment_amount    = $5,
	              is_vip_member          = $6
	          WHERE id = $7
	          RETURNING ` + userColumns

	periodEnd := sql.NullTime{Time: s.CurrentPeriodEnd, Valid: !s.CurrentPeriodEnd.IsZero()}

	var u models.User
	err := r.db.GetContext(ctx, &u, query,
		models.StringPtr(s.ID),
		models.StringPtr(s.Status),
		periodEnd,
		s.CancelAtPeriodEnd,
		s.NextPaymentAmount,
		vip,
		userID,
	)
	if err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

func (r *PostgresRepository) ListReports(ctx context.Context) ([]models.AnalyticalReport, error) {
	reports := []models.AnalyticalReport{}
	query := `SELECT ` + reportColumns + ` FROM analytical_reports ORDER BY id`
	if err := r.db.SelectContext(ctx, &reports, query); err != nil {
		return nil, dbError(err)
	}
	return trimReports(reports), nil
}

func (r *PostgresRepository) ListFreeSampleReports(ctx context.Context) ([]models.AnalyticalReport, error) {
	reports := []models.AnalyticalReport{}
	query := `SELECT ` + reportColumns + ` FROM analytical_reports WHERE is_free_sample = TRUE ORDER BY id`
	if err := r.db.SelectContext(ctx, &reports, query); err != nil {
		return nil, dbError(err)
	}
	return trimReports(reports), nil
}

func (r *PostgresRepository) GetReport(ctx context.Context, id int64) (*models.AnalyticalReport, error) {
	var rep models.AnalyticalReport
	query := `SELECT ` + reportColumns + ` FROM analytical_reports WHERE id = $1`
	if err := r.db.GetContext(ctx, &rep, query, id); err != nil {
		return nil, dbError(err)
	}
	rep.Price = trimScale(rep.Price)
	return &rep, nil
}

func (r *PostgresRepository) CreateReport(ctx context.Context, in models.AnalyticalReport) (*models.AnalyticalReport, error) {
	query := `INSERT INTO analytical_reports (title, description, price, file_url, is_free_sample)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING ` + reportColumns

	var rep models.AnalyticalReport
	if err := r.db.GetContext(ctx, &rep, query, in.Title, in.Description, in.Price, in.FileURL, in.IsFreeSample); err != nil {
		return nil, dbError(err)
	}
	rep.Price = trimScale(rep.Price)
	return &rep, nil
}

func (r *PostgresRepository) UpdateReportFileURL(ctx context.Context, id int64, fileURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE analytical_reports SET file_url = $1 WHERE id = $2`, fileURL, id)
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CreatePurchase leans on the unique payment intent index: a conflicting
// insert returns no row and the stored purchase is read back instead.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p models.Purchase) (*models.Purchase, error) {
	query := `INSERT INTO purchases (user_id, report_id, stripe_payment_intent_id, amount)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (stripe_payment_intent_id) DO NOTHING
	          RETURNING ` + purchaseColumns

	var out models.Purchase
	err := r.db.GetContext(ctx, &out, query, p.UserID, p.ReportID, p.StripePaymentIntentID, p.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetPurchaseByPaymentIntent(ctx, p.StripePaymentIntentID)
	}
	if err != nil {
		return nil, dbError(err)
	}
	out.Amount = trimScale(out.Amount)
	return &out, nil
}

func (r *PostgresRepository) GetPurchaseByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	var p models.Purchase
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE stripe_payment_intent_id = $1`
	if err := r.db.GetContext(ctx, &p, query, paymentIntentID); err != nil {
		return nil, dbError(err)
	}
	p.Amount = trimScale(p.Amount)
	return &p, nil
}

func (r *PostgresRepository) ListUserPurchases(ctx context.Context, userID int64) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY purchased_at DESC`
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, dbError(err)
	}
	return trimPurchases(purchases), nil
}

func (r *PostgresRepository) HasUserPurchasedReport(ctx context.Context, userID, reportID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND report_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, userID, reportID); err != nil {
		return false, dbError(err)
	}
	return exists, nil
}
