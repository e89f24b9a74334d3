package model

import (
	"time"

	"gorm.io/datatypes"
)

type Tier string

const (
	TierFreemium Tier = "FREEMIUM"
	TierPremium  Tier = "PREMIUM"
)

// UserModel maps to 'users'.
type UserModel struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Email              string    `gorm:"column:email;uniqueIndex;not null"`
	HashedPassword     string    `gorm:"column:hashed_password;not null"`
	SubscriptionStatus Tier      `gorm:"column:subscription_status;not null;default:FREEMIUM"`
	CurrencyPref       string    `gorm:"column:currency_pref;not null;default:USD"`
	Credits            int       `gorm:"column:credits;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (UserModel) TableName() string { return "users" }

// DecisionModel maps to 'decisions'. Rows are written once and never updated.
type DecisionModel struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          *uint64   `gorm:"column:user_id;index" json:"user_id"`
	Asset           string    `gorm:"column:asset;index;not null" json:"asset"`
	Action          string    `gorm:"column:action;not null" json:"action"`
	Reasoning       string    `gorm:"column:reasoning;type:TEXT;not null" json:"reasoning"`
	Timeframe       string    `gorm:"column:timeframe;not null" json:"timeframe"`
	ConvictionLevel int       `gorm:"column:conviction_level" json:"conviction_level"`
	EmotionalTone   string    `gorm:"column:emotional_tone" json:"emotional_tone"`
	CreatedAt       time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (DecisionModel) TableName() string { return "decisions" }

// CreditEntryModel maps to 'credit_ledger', one row per balance movement.
type CreditEntryModel struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID       uint64    `gorm:"column:user_id;index;not null"`
	Delta        int       `gorm:"column:delta;not null"`
	BalanceAfter int       `gorm:"column:balance_after;not null"`
	Reason       string    `gorm:"column:reason;not null"`
	DecisionID   *uint64   `gorm:"column:decision_id"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (CreditEntryModel) TableName() string { return "credit_ledger" }

// Credit ledger reasons.
const (
	CreditReasonAnalysis     = "analysis"
	CreditReasonPremiumGrant = "premium_grant"
)

type PaymentStatus string

const PaymentStatusSuccess PaymentStatus = "success"

// PaymentModel maps to 'payments'. Amount is a decimal string.
type PaymentModel struct {
	ID            uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID string         `gorm:"column:transaction_id;uniqueIndex;not null"`
	UserID        uint64         `gorm:"column:user_id;index;not null"`
	Amount        string         `gorm:"column:amount;not null"`
	Currency      string         `gorm:"column:currency;not null"`
	Method        string         `gorm:"column:method;not null"`
	Status        PaymentStatus  `gorm:"column:status;not null"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:TEXT"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (PaymentModel) TableName() string { return "payments" }

// The tables below are migrated but not yet written by any flow.

type BehaviorPatternModel struct {
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	BiasName  string         `gorm:"column:bias_name;index"`
	Frequency int            `gorm:"column:frequency;default:0"`
	Weight    float64        `gorm:"column:weight;default:0"`
	MetaData  datatypes.JSON `gorm:"column:meta_data;type:TEXT"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (BehaviorPatternModel) TableName() string { return "behavior_patterns" }

type PsychologicalProfileModel struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	MetricName  string         `gorm:"column:metric_name;uniqueIndex"`
	Value       float64        `gorm:"column:value"`
	History     datatypes.JSON `gorm:"column:history;type:TEXT"`
	LastUpdated time.Time      `gorm:"column:last_updated"`
}

func (PsychologicalProfileModel) TableName() string { return "psychological_profile" }

type OutcomeLinkModel struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	DecisionID uint64    `gorm:"column:decision_id;index"`
	Result     string    `gorm:"column:result"`
	Delta      float64   `gorm:"column:delta"`
	Reflection string    `gorm:"column:reflection;type:TEXT"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (OutcomeLinkModel) TableName() string { return "outcome_links" }

// AllModels lists every table the store migrates.
func AllModels() []interface{} {
	return []interface{}{
		&UserModel{},
		&DecisionModel{},
		&CreditEntryModel{},
		&PaymentModel{},
		&BehaviorPatternModel{},
		&PsychologicalProfileModel{},
		&OutcomeLinkModel{},
	}
}
