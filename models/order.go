package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusPlaced = "placed"
)

// Order is the durable record created exactly once per successful session.
// Status transitions after creation belong to fulfillment.
type Order struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber       string    `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID            string    `gorm:"not null;index" json:"user_id"`
	Subtotal          int64     `gorm:"not null" json:"subtotal"`
	Tax               int64     `gorm:"not null" json:"tax"`
	Shipping          int64     `gorm:"not null" json:"shipping"`
	Total             int64     `gorm:"not null" json:"total"`
	Currency          string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;default:'placed'" json:"status"`
	DeliveryOption    string    `gorm:"type:varchar(20);not null" json:"delivery_option"`
	PaymentKind       string    `gorm:"type:varchar(20);not null" json:"payment_kind"`
	PaymentDescriptor string    `gorm:"not null" json:"payment_descriptor"`
	TransactionID     string    `json:"transaction_id,omitempty"`
	AddressJSON       string    `gorm:"type:text;not null" json:"-"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
	OrderItems        []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID string    `gorm:"not null" json:"product_id"`
	Name      string    `gorm:"not null" json:"name"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
}
