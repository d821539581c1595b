package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProducerOrder struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	OrderNumber       string          `gorm:"size:50;not null;unique" json:"order_number"`
	ProducerID        *uint           `gorm:"index" json:"producer_id"`
	Producer          *Producer       `json:"producer,omitempty"`
	CenterID          uint            `gorm:"not null;index" json:"center_id"`
	Center            Center          `json:"center"`
	EarMoldID         *uint           `gorm:"index" json:"ear_mold_id"`
	Status            OrderStatus     `gorm:"size:20;not null;index;default:received" json:"status"`
	Priority          OrderPriority   `gorm:"size:10;not null;default:normal" json:"priority"`
	EstimatedDelivery *time.Time      `gorm:"index" json:"estimated_delivery"`
	ActualDelivery    *time.Time      `json:"actual_delivery"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	ShippingCost      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"shipping_cost"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *ProducerOrder) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber()
	}
	if o.Status == "" {
		o.Status = OrderStatusReceived
	}
	if o.Priority == "" {
		o.Priority = OrderPriorityNormal
	}
	return nil
}

// NewOrderNumber returns PRD- followed by eight upper-case hex characters.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PRD-" + strings.ToUpper(hex[:8])
}

// IsOverdue reports whether the estimated delivery has passed without a terminal status.
func (o ProducerOrder) IsOverdue(now time.Time) bool {
	return o.EstimatedDelivery != nil && o.EstimatedDelivery.Before(now) && !o.Status.IsTerminal()
}

// DeliveredOnTime is false for undelivered orders.
func (o ProducerOrder) DeliveredOnTime() bool {
	if o.ActualDelivery == nil || o.EstimatedDelivery == nil {
		return false
	}
	return !o.ActualDelivery.After(*o.EstimatedDelivery)
}
