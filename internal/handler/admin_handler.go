package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// editableSettings validates the settings staff may change.
var editableSettings = map[string]func(string) error{
	domain.SettingReferralCommission: func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return apperr.Invalid("referral commission must be a non-negative integer")
		}
		return nil
	},
}

type AdminHandler struct {
	adminRepo   *repository.AdminRepository
	settingRepo *repository.SettingRepository
	auditRepo   *repository.AuditRepository
	paymentRepo *repository.PaymentRepository
	legacyRepo  *repository.LegacyRepository
	txRepo      *repository.TransactionRepository
	accounts    *service.AccountService
	entitlement *service.EntitlementService
	ledger      *service.LedgerService
	reconciler  *service.ReconcilerService
	treasuryID  uint
}

func NewAdminHandler(
	db *gorm.DB,
	accounts *service.AccountService,
	entitlement *service.EntitlementService,
	ledger *service.LedgerService,
	reconciler *service.ReconcilerService,
	treasuryID uint,
) *AdminHandler {
	return &AdminHandler{
		adminRepo:   repository.NewAdminRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		auditRepo:   repository.NewAuditRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		legacyRepo:  repository.NewLegacyRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		accounts:    accounts,
		entitlement: entitlement,
		ledger:      ledger,
		reconciler:  reconciler,
		treasuryID:  treasuryID,
	}
}

func (h *AdminHandler) audit(c *gin.Context, action, resource string, resourceID uint, meta gin.H) {
	actor := middleware.GetAccountID(c)
	var metaJSON string
	if meta != nil {
		b, _ := json.Marshal(meta)
		metaJSON = string(b)
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		AccountID:  &actor,
		Action:     action,
		Resource:   resource,
		ResourceID: strconv.FormatUint(uint64(resourceID), 10),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Metadata:   metaJSON,
	})
}

func writePage(c *gin.Context, data interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{"data": data, "total": total, "page": page, "limit": limit})
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.adminRepo.GetDashboardStats(time.Now())
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Analytics handles GET /admin/analytics?days=30.
func (h *AdminHandler) Analytics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}
	signups, err := h.adminRepo.AccountSignupsByDay(days)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to load analytics")
		return
	}
	revenue, err := h.adminRepo.RevenueByDay(days)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "signups": signups, "revenue": revenue})
}

func (h *AdminHandler) ListAccounts(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.accounts.List(c.Request.Context(), c.Query("search"), c.Query("role"), p, limit)
	if err != nil {
		respondError(c, err, "failed to list accounts")
		return
	}
	writePage(c, list, total, p, limit)
}

func (h *AdminHandler) GetAccount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load account")
		return
	}
	access, err := h.entitlement.Access(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to resolve access")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": a, "access": access})
}

// UpdateRole handles PATCH /admin/accounts/:id/role.
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.accounts.SetRole(c.Request.Context(), middleware.GetAccountID(c), id, req.Role)
	if err != nil {
		respondError(c, err, "failed to update role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": a})
}

// GrantCredits handles POST /admin/accounts/:id/credits. Credits come out of the treasury.
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description" binding:"max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	desc := req.Description
	if desc == "" {
		desc = "credit grant"
	}
	debit, err := h.ledger.Transfer(c.Request.Context(), h.treasuryID, id, req.Amount, desc)
	if err != nil {
		respondError(c, err, "failed to grant credits")
		return
	}
	h.audit(c, "credits.grant", "account", id, gin.H{"amount": req.Amount, "correlation_id": debit.CorrelationID})
	c.JSON(http.StatusCreated, gin.H{"transaction": debit})
}

func (h *AdminHandler) ListPayments(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.paymentRepo.List(c.Query("status"), c.Query("kind"), p, limit)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to list payments")
		return
	}
	writePage(c, list, total, p, limit)
}

// MarkPaymentPaid handles POST /admin/payments/:id/mark-paid for bank transfers seen on the statement.
func (h *AdminHandler) MarkPaymentPaid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		PaidAt *time.Time `json:"paid_at"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	var paidAt time.Time
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	rec, err := h.reconciler.MarkPaid(c.Request.Context(), id, paidAt)
	if err != nil {
		respondError(c, err, "failed to mark payment paid")
		return
	}
	h.audit(c, "payment.mark_paid", "payment", id, gin.H{"reference": rec.Reference})
	c.JSON(http.StatusOK, gin.H{"payment": rec})
}

// SyncPayment handles POST /admin/payments/:id/sync, polling the provider for a card payment.
func (h *AdminHandler) SyncPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rec, err := h.reconciler.SyncCheckout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to sync payment")
		return
	}
	h.audit(c, "payment.sync", "payment", id, gin.H{"reference": rec.Reference, "status": rec.Status})
	c.JSON(http.StatusOK, gin.H{"payment": rec})
}

func (h *AdminHandler) ListLegacy(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.legacyRepo.List(c.Query("status"), p, limit)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to list verifications")
		return
	}
	writePage(c, list, total, p, limit)
}

func (h *AdminHandler) ConfirmLegacy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := h.reconciler.MarkConfirmed(c.Request.Context(), middleware.GetAccountID(c), id)
	if err != nil {
		respondError(c, err, "failed to confirm verification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": v})
}

func (h *AdminHandler) RejectLegacy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note" binding:"max=255"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	v, err := h.reconciler.MarkRejected(c.Request.Context(), middleware.GetAccountID(c), id, req.Note)
	if err != nil {
		respondError(c, err, "failed to reject verification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": v})
}

func (h *AdminHandler) ListTransactions(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.txRepo.List(c.Query("type"), p, limit)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to list transactions")
		return
	}
	writePage(c, list, total, p, limit)
}

func (h *AdminHandler) ListAudit(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.auditRepo.List(c.Query("action"), p, limit)
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to list audit log")
		return
	}
	writePage(c, list, total, p, limit)
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	list, err := h.settingRepo.GetAll()
	if err != nil {
		respondError(c, apperr.Storage(err), "failed to load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": lo.SliceToMap(list, func(s models.SystemSetting) (string, string) {
		return s.Key, s.Value
	})})
}

// UpdateSettings handles PUT /admin/settings with a {"key": "value"} object.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		badRequest(c, "expected a non-empty object of settings")
		return
	}
	for k, v := range req {
		validate, ok := editableSettings[k]
		if !ok {
			badRequest(c, fmt.Sprintf("setting %q is not editable", k))
			return
		}
		if err := validate(v); err != nil {
			respondError(c, err, "")
			return
		}
	}
	actor := middleware.GetAccountID(c)
	for k, v := range req {
		if err := h.settingRepo.Set(k, v, &actor); err != nil {
			respondError(c, apperr.Storage(err), "failed to save settings")
			return
		}
	}
	h.audit(c, "settings.update", "setting", 0, gin.H(lo.MapValues(req, func(v string, _ string) interface{} { return v })))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
