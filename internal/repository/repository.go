// Package repository persists users, analytical reports and purchases.
// PostgresRepository is used in deployments; MemoryRepository backs local
// development and tests.
package repository

import (
	"context"

	"vanguard-platform/internal/models"
)

type Repository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash, email string) (*models.User, error)
	UpsertDiscordUser(ctx context.Context, u models.DiscordUser) (*models.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID int64, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID int64, s models.SubscriptionState, vip bool) (*models.User, error)

	ListReports(ctx context.Context) ([]models.AnalyticalReport, error)
	ListFreeSampleReports(ctx context.Context) ([]models.AnalyticalReport, error)
	GetReport(ctx context.Context, id int64) (*models.AnalyticalReport, error)
	CreateReport(ctx context.Context, r models.AnalyticalReport) (*models.AnalyticalReport, error)
	UpdateReportFileURL(ctx context.Context, id int64, fileURL string) error

	// CreatePurchase records at most one purchase per payment intent. A repeat
	// for an intent that is already recorded returns the stored row.
	CreatePurchase(ctx context.Context, p models.Purchase) (*models.Purchase, error)
	GetPurchaseByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Purchase, error)
	ListUserPurchases(ctx context.Context, userID int64) ([]models.Purchase, error)
	HasUserPurchasedReport(ctx context.Context, userID, reportID int64) (bool, error)
}

// DiscordUsernamePrefix is reserved for accounts created through Discord
// OAuth; password registrations may not use it.
const DiscordUsernamePrefix = "discord:"

// DiscordUsername is the local username assigned to accounts created through
// Discord OAuth. It keeps the legacy unique username column populated.
func DiscordUsername(discordID string) string {
	return DiscordUsernamePrefix + discordID
}

// SampleReports is the catalog seeded into empty stores.
func SampleReports() []models.AnalyticalReport {
	return []models.AnalyticalReport{
		{
			Title:        "ビットコイン市場分析レポート 2024年第1四半期",
			Description:  "ビットコインの価格動向、オンチェーン分析、および今後の予測を含む包括的な分析レポート",
			Price:        "2980",
			FileURL:      "reports/btc-q1-2024.pdf",
			IsFreeSample: true,
		},
		{
			Title:        "DeFiプロトコル詳細分析：Uniswap vs SushiSwap",
			Description:  "主要DeFiプロトコルの比較分析とリスク評価レポート",
			Price:        "4980",
			FileURL:      "reports/defi-protocols-analysis.pdf",
			IsFreeSample: false,
		},
		{
			Title:        "Layer 2ソリューション投資ガイド",
			Description:  "Polygon、Arbitrum、Optimismなど主要Layer 2プロジェクトの投資機会分析",
			Price:        "3980",
			FileURL:      "reports/layer2-investment-guide.pdf",
			IsFreeSample: false,
		},
	}
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
