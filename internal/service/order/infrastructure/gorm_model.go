package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应数据库中的 orders 表，列名即各组件之间的数据契约
type OrderModel struct {
	ID                      string          `gorm:"primaryKey;type:varchar(36)"`
	UserID                  *string         `gorm:"type:varchar(64);index"`
	CustomerEmail           string          `gorm:"type:varchar(255);not null;index"`
	CustomerName            string          `gorm:"type:varchar(255);not null"`
	CustomerPhone           string          `gorm:"type:varchar(64);not null"`
	AddressLine1            string          `gorm:"column:address_line1;type:varchar(255);not null"`
	AddressLine2            *string         `gorm:"column:address_line2;type:varchar(255)"`
	PostalCode              string          `gorm:"type:varchar(16);not null"`
	City                    string          `gorm:"type:varchar(128);not null"`
	PickupDate              string          `gorm:"type:varchar(10);not null"`
	PickupWindow            string          `gorm:"type:varchar(11);not null"`
	EstimatedWeightKg       decimal.Decimal `gorm:"type:decimal(27,20);not null"`
	PricePerKg              decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	EstimatedTotalPrice     int64           `gorm:"not null"`
	Currency                string          `gorm:"type:varchar(3);not null"`
	DeliveryEstimateAt      time.Time       `gorm:"not null"`
	Status                  string          `gorm:"type:varchar(32);not null;default:RECEIVED"`
	PaymentStatus           string          `gorm:"type:varchar(16);not null;default:unpaid"`
	StripeCheckoutSessionID *string         `gorm:"type:varchar(255);uniqueIndex"`
	PaidAt                  *time.Time
	CreatedAt               time.Time `gorm:"not null;index"`
	UpdatedAt               time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// ProfileModel 对应 profiles 表，id 与身份服务的用户 id 相同
type ProfileModel struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Role      string `gorm:"type:varchar(32);not null;default:customer"`
	FirstName string `gorm:"type:varchar(128)"`
	LastName  string `gorm:"type:varchar(128)"`
	Phone     string `gorm:"type:varchar(64)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProfileModel) TableName() string {
	return "profiles"
}
