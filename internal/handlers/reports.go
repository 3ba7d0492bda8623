package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/billing"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/middleware"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/objects"
	"vanguard-platform/internal/repository"
)

// ReportHandler serves the report catalogue, one-off purchases and downloads.
type ReportHandler struct {
	Reports   repository.Repository
	Billing   billing.Gateway
	Downloads *objects.Resolver
	Log       logging.Logger
}

func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.Reports.ListReports(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Samples(c *gin.Context) {
	reports, err := h.Reports.ListFreeSampleReports(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) report(c *gin.Context, id int64) (*models.AnalyticalReport, bool) {
	rep, err := h.Reports.GetReport(c.Request.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		fail(c, apperr.New(apperr.ErrNotFound, "Report not found"))
		return nil, false
	}
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return rep, true
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rep, ok := h.report(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

// PaymentIntentRequest defines the JSON body for a report payment intent.
type PaymentIntentRequest struct {
	ReportID int64 `json:"reportId" binding:"required,gt=0"`
}

// CreatePaymentIntent charges the report's own price; the client never
// supplies an amount.
func (h *ReportHandler) CreatePaymentIntent(c *gin.Context) {
	ctx := c.Request.Context()

	var req PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	rep, ok := h.report(c, req.ReportID)
	if !ok {
		return
	}
	amount, err := billing.AmountFromPrice(rep.Price)
	if err != nil {
		fail(c, err)
		return
	}

	intent, err := h.Billing.CreatePaymentIntent(ctx, amount, rep.ID)
	if err != nil {
		fail(c, err)
		return
	}

	h.Log.Info(ctx, "report payment intent created", "report_id", rep.ID, "payment_intent_id", intent.ID, "amount", amount)
	c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret, "amount": amount})
}

// ConfirmPurchaseRequest defines the JSON body for purchase confirmation.
type ConfirmPurchaseRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
	ReportID        int64  `json:"reportId" binding:"required,gt=0"`
}

// ConfirmPurchase records a purchase after checking with Stripe that the
// intent was paid for this report.
func (h *ReportHandler) ConfirmPurchase(c *gin.Context) {
	ctx := c.Request.Context()

	var req ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	rep, ok := h.report(c, req.ReportID)
	if !ok {
		return
	}

	// 1. Server-side verification. The client's word is not enough.
	intent, err := h.Billing.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		fail(c, err)
		return
	}
	if !intent.Succeeded() {
		badRequest(c, "Payment not completed")
		return
	}
	amount, err := billing.AmountFromPrice(rep.Price)
	if err != nil {
		fail(c, err)
		return
	}
	if intent.Metadata["reportId"] != strconv.FormatInt(rep.ID, 10) || intent.Amount != amount {
		h.Log.Warn(ctx, "payment intent does not match report",
			"payment_intent_id", intent.ID,
			"report_id", rep.ID,
			"intent_report_id", intent.Metadata["reportId"],
			"intent_amount", intent.Amount,
		)
		badRequest(c, "Payment does not match report")
		return
	}

	// 2. One purchase per intent; a retried confirmation returns the first.
	// CreatePurchase enforces this for confirmations that race past the lookup.
	purchase, err := h.Reports.GetPurchaseByPaymentIntent(ctx, intent.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		p := models.Purchase{
			ReportID:              rep.ID,
			StripePaymentIntentID: intent.ID,
			Amount:                rep.Price,
		}
		if userID, ok := middleware.UserID(c); ok {
			p.UserID = &userID
		}
		purchase, err = h.Reports.CreatePurchase(ctx, p)
	}
	if err != nil {
		fail(c, err)
		return
	}

	// 3. The purchase stands even when no download handle can be made.
	var downloadURL *string
	if handle, err := h.Downloads.Handle(ctx, rep); err != nil {
		h.Log.Warn(ctx, "download handle unavailable", "report_id", rep.ID, "error", err)
	} else {
		downloadURL = &handle
	}

	h.Log.Info(ctx, "report purchase confirmed", "purchase_id", purchase.ID, "report_id", rep.ID, "payment_intent_id", intent.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "purchase": purchase, "downloadUrl": downloadURL})
}

// DownloadSample returns a download handle for a free sample report.
func (h *ReportHandler) DownloadSample(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rep, ok := h.report(c, id)
	if !ok {
		return
	}
	if !rep.IsFreeSample {
		fail(c, apperr.New(apperr.ErrForbidden, "This report is not a free sample"))
		return
	}

	handle, err := h.Downloads.Handle(c.Request.Context(), rep)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": handle})
}

// Download returns a download handle for a report the signed-in user bought.
func (h *ReportHandler) Download(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := idParam(c)
	if !ok {
		return
	}
	rep, ok := h.report(c, id)
	if !ok {
		return
	}

	userID, _ := middleware.UserID(c)
	bought, err := h.Reports.HasUserPurchasedReport(ctx, userID, rep.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if !bought && !rep.IsFreeSample {
		fail(c, apperr.New(apperr.ErrForbidden, "Report not purchased"))
		return
	}

	handle, err := h.Downloads.Handle(ctx, rep)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": handle})
}

// ServeFile streams a report PDF for a proxy download token.
func (h *ReportHandler) ServeFile(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rep, ok := h.report(c, id)
	if !ok {
		return
	}

	body, name, err := h.Downloads.Fetch(c.Request.Context(), rep, c.Query("token"))
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", body)
}

// MyPurchases lists the signed-in user's purchases, newest first.
func (h *ReportHandler) MyPurchases(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	purchases, err := h.Reports.ListUserPurchases(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}
