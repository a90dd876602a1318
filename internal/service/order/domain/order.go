// internal/service/order/domain/order.go
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WeightScale 重量保留的小数位，与持久化列精度一致，超出部分四舍五入
const WeightScale = 20

// MaxWeightKg 重量上限（不含），与持久化列的整数位一致
var MaxWeightKg = decimal.New(1, 7)

var pickupWindowPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d-([01]\d|2[0-3]):[0-5]\d$`)

type Contact struct {
	Email string // 访客订单关联账号的依据
	Name  string
	Phone string
}

type Address struct {
	Line1      string
	Line2      string // 可选
	PostalCode string
	City       string
}

type Pickup struct {
	Date   string // YYYY-MM-DD
	Window string // HH:MM-HH:MM
}

// Order 是订单聚合的根实体
type Order struct {
	ID      string
	OwnerID string // 空表示访客订单
	Contact Contact
	Address Address
	Pickup  Pickup

	EstimatedWeightKg   decimal.Decimal
	PricePerKg          decimal.Decimal // 下单时的价格快照
	EstimatedTotalPrice int64
	Currency            string
	DeliveryEstimateAt  time.Time

	FulfillmentStatus FulfillmentStatus
	PaymentStatus     PaymentStatus
	PaymentSessionRef string // 支付会话 id，创建会话后回填
	PaidAt            *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderDraft 是未经校验的下单输入
type OrderDraft struct {
	Email             string
	Name              string
	Phone             string
	AddressLine1      string
	AddressLine2      string
	PostalCode        string
	City              string
	PickupDate        string
	PickupWindow      string
	EstimatedWeightKg string
}

// Pricing 是创建订单时的定价上下文
type Pricing struct {
	PricePerKg decimal.Decimal
	Currency   string
	Location   *time.Location
}

// Validate 按固定顺序检查字段，返回第一个失败的字段以及解析后的重量
func (d OrderDraft) Validate() (decimal.Decimal, error) {
	required := []struct {
		field string
		value string
	}{
		{"email", d.Email},
		{"name", d.Name},
		{"phone", d.Phone},
		{"address_line1", d.AddressLine1},
		{"postal_code", d.PostalCode},
		{"city", d.City},
		{"pickup_date", d.PickupDate},
		{"pickup_window", d.PickupWindow},
		{"estimated_weight_kg", d.EstimatedWeightKg},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return decimal.Zero, missing(r.field)
		}
	}

	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(d.PickupDate)); err != nil {
		return decimal.Zero, &ValidationError{Field: "pickup_date", Reason: "must be a date (YYYY-MM-DD)"}
	}
	if !pickupWindowPattern.MatchString(strings.TrimSpace(d.PickupWindow)) {
		return decimal.Zero, &ValidationError{Field: "pickup_window", Reason: "must be HH:MM-HH:MM"}
	}

	weight, err := ParseWeight(d.EstimatedWeightKg)
	if err != nil {
		return decimal.Zero, err
	}
	return weight, nil
}

// ParseWeight 解析重量：有限小数、大于 0、小于 MaxWeightKg
func ParseWeight(raw string) (decimal.Decimal, error) {
	w, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "estimated_weight_kg", Reason: "must be a number"}
	}
	w = w.Round(WeightScale)
	if !w.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "estimated_weight_kg", Reason: "must be greater than 0"}
	}
	if w.GreaterThanOrEqual(MaxWeightKg) {
		return decimal.Zero, &ValidationError{Field: "estimated_weight_kg", Reason: "must be less than " + MaxWeightKg.String()}
	}
	return w, nil
}

// NewOrder 校验输入并计算价格与预计送达时间，返回一个未支付的新订单。
// ownerID 为空表示访客下单。
func NewOrder(id, ownerID string, d OrderDraft, p Pricing, now time.Time) (*Order, error) {
	weight, err := d.Validate()
	if err != nil {
		return nil, err
	}
	if !PriceInRange(weight, p.PricePerKg) {
		return nil, &ValidationError{Field: "estimated_weight_kg", Reason: "estimated total is too large"}
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := PickupStart(strings.TrimSpace(d.PickupDate), strings.TrimSpace(d.PickupWindow), loc)
	if err != nil {
		return nil, &ValidationError{Field: "pickup_window", Reason: err.Error()}
	}

	return &Order{
		ID:      id,
		OwnerID: ownerID,
		Contact: Contact{
			Email: strings.TrimSpace(d.Email),
			Name:  strings.TrimSpace(d.Name),
			Phone: strings.TrimSpace(d.Phone),
		},
		Address: Address{
			Line1:      strings.TrimSpace(d.AddressLine1),
			Line2:      strings.TrimSpace(d.AddressLine2),
			PostalCode: strings.TrimSpace(d.PostalCode),
			City:       strings.TrimSpace(d.City),
		},
		Pickup: Pickup{
			Date:   strings.TrimSpace(d.PickupDate),
			Window: strings.TrimSpace(d.PickupWindow),
		},
		EstimatedWeightKg:   weight,
		PricePerKg:          p.PricePerKg,
		EstimatedTotalPrice: ComputePrice(weight, p.PricePerKg),
		Currency:            p.Currency,
		DeliveryEstimateAt:  ComputeDeliveryDeadline(start),
		FulfillmentStatus:   StatusReceived,
		PaymentStatus:       PaymentUnpaid,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func (o *Order) IsGuest() bool { return o.OwnerID == "" }

func (o *Order) IsPaid() bool { return o.PaymentStatus == PaymentPaid }
