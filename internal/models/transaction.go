package models

import "time"

// Transaction is an immutable ledger row. A transfer writes a debit and a credit sharing CorrelationID;
// an exchange writes an exchange row for the buyer and a credit row for the seller.
type Transaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CorrelationID string    `gorm:"size:36;not null;index" json:"correlation_id"`
	AccountID     uint      `gorm:"not null;index" json:"account_id"` // whose balance the snapshot describes
	Type          string    `gorm:"size:20;not null;index" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Status        string    `gorm:"size:20;not null;index" json:"status"`
	FromAccountID uint      `gorm:"not null;index" json:"from_account_id"`
	ToAccountID   uint      `gorm:"not null;index" json:"to_account_id"`
	ListingID     *uint     `gorm:"index" json:"listing_id,omitempty"`
	Description   string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`

	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Delta is the signed balance change this row recorded.
func (t *Transaction) Delta() int64 {
	return t.BalanceAfter - t.BalanceBefore
}
