package model

import (
	"time"
)

// Unit is a physical clinic location offered in the menu.
type Unit struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id" validate:"required"`
	Name      string    `json:"name" gorm:"column:name" validate:"required"`
	Address   string    `json:"address,omitempty" gorm:"column:address"`
	Active    bool      `json:"active" gorm:"column:active;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Unit) TableName() string {
	return "units"
}

// Department is an attendance queue owner within a unit, e.g. exams
// or billing. Each department serves at most one user at a time.
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id" validate:"required"`
	UnitID    string    `json:"unit_id" gorm:"column:unit_id;index" validate:"required"`
	Name      string    `json:"name" gorm:"column:name" validate:"required"`
	Active    bool      `json:"active" gorm:"column:active;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Department) TableName() string {
	return "departments"
}

// Seller is a sales contact the bot can hand a user off to.
type Seller struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id" validate:"required"`
	UnitID    string    `json:"unit_id" gorm:"column:unit_id;index"`
	Name      string    `json:"name" gorm:"column:name" validate:"required"`
	Phone     string    `json:"phone" gorm:"column:phone" validate:"required"`
	Active    bool      `json:"active" gorm:"column:active;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Seller) TableName() string {
	return "sellers"
}

// PriceItem is one row of the price list shown by the bot.
type PriceItem struct {
	ID     string `json:"id" gorm:"primaryKey;column:id" validate:"required"`
	UnitID string `json:"unit_id,omitempty" gorm:"column:unit_id;index"`
	Name   string `json:"name" gorm:"column:name" validate:"required"`
	// PriceCents avoids floating point money.
	PriceCents int64     `json:"price_cents" gorm:"column:price_cents" validate:"gte=0"`
	Active     bool      `json:"active" gorm:"column:active;default:true"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (PriceItem) TableName() string {
	return "price_items"
}

// Setting keys for runtime tunables read by the config cache.
const (
	SettingNotifyIntervalSeconds = "queue_notify_interval_seconds"
	SettingAbandonTimeoutSeconds = "queue_abandon_timeout_seconds"
	SettingConfigReloadMillis    = "config_reload_interval_ms"
)

// Setting is a key/value runtime tunable editable from the admin API.
type Setting struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Key       string    `json:"key" gorm:"column:key;uniqueIndex" validate:"required"`
	Value     string    `json:"value" gorm:"column:value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string {
	return "settings"
}
