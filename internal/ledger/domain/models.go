// Package domain contains the append-only sats credit ledger and the debt
// records that track reneged jobs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TypePlatformFee      TransactionType = "platform_fee"
	TypePrepayment       TransactionType = "prepayment"
	TypeZapTopup         TransactionType = "zap_topup"
	TypeGiftCardPurchase TransactionType = "gift_card_purchase"
	TypeRefund           TransactionType = "refund"
)

// Credit reports whether the type adds to the balance. Debit types must carry
// a negative amount.
func (t TransactionType) Credit() bool {
	switch t {
	case TypePrepayment, TypeZapTopup, TypeRefund:
		return true
	default:
		return false
	}
}

func (t TransactionType) Valid() bool {
	switch t {
	case TypePlatformFee, TypePrepayment, TypeZapTopup, TypeGiftCardPurchase, TypeRefund:
		return true
	default:
		return false
	}
}

// CreditTransaction is one signed ledger row. Rows are never updated.
type CreditTransaction struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	UserID      snowflake.ID    `gorm:"not null;index"`
	Type        TransactionType `gorm:"type:text;not null"`
	AmountSats  int64           `gorm:"not null"`
	ReferenceID *string         `gorm:"type:text"`
	Description *string         `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// DebtPayment records one settlement against a user's debt, including any
// amount that exceeded the outstanding debt.
type DebtPayment struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	UserID      snowflake.ID  `gorm:"not null;index"`
	JobID       *snowflake.ID `gorm:"index"`
	AmountSats  int64         `gorm:"not null"`
	AppliedSats int64         `gorm:"not null"`
	SurplusSats int64         `gorm:"not null"`
	InvoiceID   *string       `gorm:"type:text"`
	CreatedAt   time.Time     `gorm:"not null"`
}

func (DebtPayment) TableName() string { return "debt_payments" }
