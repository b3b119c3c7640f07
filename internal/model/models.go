package model

import "time"

// ImportTemplate describes how to turn an external JSON feed into offers.
type ImportTemplate struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Name          string     `gorm:"not null;size:200" json:"name"`
	FeedURL       string     `gorm:"not null;size:2000" json:"feed_url"`
	MappingSchema string     `gorm:"not null;type:text" json:"mapping_schema"`
	IsActive      bool       `gorm:"not null;default:false;index" json:"is_active"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Offer is a product offer produced from one feed record.
type Offer struct {
	TemplateID         string    `json:"template_id"`
	ProductName        string    `json:"titulo"`
	Price              float64   `json:"price"`
	OriginalPrice      float64   `json:"oldPrice"`
	Details            string    `json:"details"`
	CashbackPercentage int       `json:"percentCashback"`
	Source             string    `json:"source,omitempty"`
	ReceivedAt         time.Time `json:"received_at"`
}
