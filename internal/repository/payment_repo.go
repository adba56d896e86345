package repository

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"memberhub/internal/domain"
	"memberhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// crockford is the Crockford base32 alphabet: no I, L, O or U, so references survive being read aloud.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ReferencePrefix starts every bank-transfer reference.
const ReferencePrefix = "MH"

var ErrReferenceExhausted = errors.New("failed to generate a unique payment reference after retries")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GenerateReference returns a reference like MH-7K2Q-X9PD.
func GenerateReference() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(ReferencePrefix)
	for i, c := range b {
		if i%4 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(crockford[int(c)%len(crockford)])
	}
	return sb.String(), nil
}

// NormalizeReference uppercases a reference typed by a payer and maps look-alike characters.
func NormalizeReference(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	return strings.NewReplacer("O", "0", "I", "1", "L", "1", " ", "").Replace(ref)
}

func (r *PaymentRepository) Create(p *models.PaymentRecord) error {
	return r.db.Create(p).Error
}

// CreateWithReference assigns a fresh unique reference to p and inserts it, retrying on collision.
func (r *PaymentRepository) CreateWithReference(p *models.PaymentRecord) error {
	for i := 0; i < 10; i++ {
		ref, err := GenerateReference()
		if err != nil {
			return err
		}
		taken, err := r.ReferenceExists(ref)
		if err != nil {
			return err
		}
		if taken {
			continue
		}
		p.Reference = ref
		return r.db.Create(p).Error
	}
	return ErrReferenceExhausted
}

func (r *PaymentRepository) ReferenceExists(ref string) (bool, error) {
	var n int64
	err := r.db.Unscoped().Model(&models.PaymentRecord{}).Where("reference = ?", ref).Count(&n).Error
	return n > 0, err
}

func (r *PaymentRepository) GetByID(id uint) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetForUpdate(id uint) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReference(ref string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Where("reference = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByProviderRef(ref string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Where("provider_ref = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPending returns the account's pending record of the given kind, locked for update.
func (r *PaymentRepository) FindPending(accountID uint, kind string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND kind = ? AND status = ?", accountID, kind, domain.PaymentStatusPending).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByAccount(accountID uint) ([]models.PaymentRecord, error) {
	var list []models.PaymentRecord
	err := r.db.Where("account_id = ?", accountID).Order("id DESC").Find(&list).Error
	return list, err
}

// ListActiveGrants returns paid records whose access window is still open at now.
func (r *PaymentRepository) ListActiveGrants(accountID uint, now time.Time) ([]models.PaymentRecord, error) {
	var list []models.PaymentRecord
	err := r.db.Where("account_id = ? AND status = ? AND access_until > ?", accountID, domain.PaymentStatusPaid, now).
		Find(&list).Error
	return list, err
}

// CountPaid counts the account's paid records.
func (r *PaymentRepository) CountPaid(accountID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.PaymentRecord{}).
		Where("account_id = ? AND status = ?", accountID, domain.PaymentStatusPaid).
		Count(&n).Error
	return n, err
}

// ListPendingCheckouts returns pending card records that already carry a provider session.
func (r *PaymentRepository) ListPendingCheckouts() ([]models.PaymentRecord, error) {
	var list []models.PaymentRecord
	err := r.db.Where("kind = ? AND status = ? AND provider_ref IS NOT NULL", domain.PaymentKindCard, domain.PaymentStatusPending).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// AttachSession stores the provider session on a pending card record that has none yet.
// It reports false when the record was finalized or cancelled in the meantime.
func (r *PaymentRepository) AttachSession(id uint, sessionID, checkoutURL string, expiresAt time.Time) (bool, error) {
	res := r.db.Model(&models.PaymentRecord{}).
		Where("id = ? AND status = ? AND provider_ref IS NULL", id, domain.PaymentStatusPending).
		Updates(map[string]interface{}{
			"provider_ref": sessionID,
			"checkout_url": checkoutURL,
			"expires_at":   expiresAt,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) Update(p *models.PaymentRecord) error {
	return r.db.Save(p).Error
}

// List returns payment records with optional status and kind filters.
func (r *PaymentRepository) List(status, kind string, page, limit int) ([]models.PaymentRecord, int64, error) {
	q := r.db.Model(&models.PaymentRecord{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	var list []models.PaymentRecord
	err := q.Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
