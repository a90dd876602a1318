// internal/service/order/application/dto.go
package application

import (
	"bytes"
	"encoding/json"
	"time"

	"freshdrop/internal/service/order/domain"
)

// WeightInput 接受 JSON 数字或字符串，原文交给领域层校验
type WeightInput string

func (w *WeightInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = WeightInput(s)
		return nil
	}
	if string(data) == "null" {
		*w = ""
		return nil
	}
	*w = WeightInput(data)
	return nil
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	Email             string      `json:"email"`
	Name              string      `json:"name"`
	Phone             string      `json:"phone"`
	AddressLine1      string      `json:"address_line1"`
	AddressLine2      string      `json:"address_line2,omitempty"`
	PostalCode        string      `json:"postal_code"`
	City              string      `json:"city"`
	PickupDate        string      `json:"pickup_date"`
	PickupWindow      string      `json:"pickup_window"`
	EstimatedWeightKg WeightInput `json:"estimated_weight_kg"`
}

func (req *CreateOrderRequest) toDraft() domain.OrderDraft {
	return domain.OrderDraft{
		Email:             req.Email,
		Name:              req.Name,
		Phone:             req.Phone,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		PostalCode:        req.PostalCode,
		City:              req.City,
		PickupDate:        req.PickupDate,
		PickupWindow:      req.PickupWindow,
		EstimatedWeightKg: string(req.EstimatedWeightKg),
	}
}

// CreateOrderResponse 是创建订单用例的输出数据
type CreateOrderResponse struct {
	OrderID             string    `json:"order_id"`
	CheckoutURL         string    `json:"checkout_url"`
	EstimatedTotalPrice int64     `json:"estimated_total_price"`
	Currency            string    `json:"currency"`
	DeliveryEstimateAt  time.Time `json:"delivery_estimate_at"`
}

// ConfirmCheckoutResult 是支付返回页的确认结果。Found 为 false 时订单尚未可见。
type ConfirmCheckoutResult struct {
	Found   bool   `json:"found"`
	OrderID string `json:"order_id,omitempty"`
	Paid    bool   `json:"paid"`
}

// OrderView 沿用持久化的列名
type OrderView struct {
	ID                      string     `json:"id"`
	UserID                  *string    `json:"user_id"`
	CustomerEmail           string     `json:"customer_email"`
	CustomerName            string     `json:"customer_name"`
	CustomerPhone           string     `json:"customer_phone"`
	AddressLine1            string     `json:"address_line1"`
	AddressLine2            *string    `json:"address_line2"`
	PostalCode              string     `json:"postal_code"`
	City                    string     `json:"city"`
	PickupDate              string     `json:"pickup_date"`
	PickupWindow            string     `json:"pickup_window"`
	EstimatedWeightKg       string     `json:"estimated_weight_kg"`
	PricePerKg              string     `json:"price_per_kg"`
	EstimatedTotalPrice     int64      `json:"estimated_total_price"`
	Currency                string     `json:"currency"`
	DeliveryEstimateAt      time.Time  `json:"delivery_estimate_at"`
	Status                  string     `json:"status"`
	PaymentStatus           string     `json:"payment_status"`
	StripeCheckoutSessionID *string    `json:"stripe_checkout_session_id"`
	PaidAt                  *time.Time `json:"paid_at"`
	CreatedAt               time.Time  `json:"created_at"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToOrderView 时间按业务时区输出
func ToOrderView(o *domain.Order, loc *time.Location) *OrderView {
	if loc == nil {
		loc = time.UTC
	}
	v := &OrderView{
		ID:                      o.ID,
		UserID:                  optional(o.OwnerID),
		CustomerEmail:           o.Contact.Email,
		CustomerName:            o.Contact.Name,
		CustomerPhone:           o.Contact.Phone,
		AddressLine1:            o.Address.Line1,
		AddressLine2:            optional(o.Address.Line2),
		PostalCode:              o.Address.PostalCode,
		City:                    o.Address.City,
		PickupDate:              o.Pickup.Date,
		PickupWindow:            o.Pickup.Window,
		EstimatedWeightKg:       o.EstimatedWeightKg.String(),
		PricePerKg:              o.PricePerKg.String(),
		EstimatedTotalPrice:     o.EstimatedTotalPrice,
		Currency:                o.Currency,
		DeliveryEstimateAt:      o.DeliveryEstimateAt.In(loc),
		Status:                  string(o.FulfillmentStatus),
		PaymentStatus:           string(o.PaymentStatus),
		StripeCheckoutSessionID: optional(o.PaymentSessionRef),
		CreatedAt:               o.CreatedAt.In(loc),
	}
	if o.PaidAt != nil {
		paidAt := o.PaidAt.In(loc)
		v.PaidAt = &paidAt
	}
	return v
}

func toOrderViews(orders []*domain.Order, loc *time.Location) []*OrderView {
	out := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderView(o, loc))
	}
	return out
}
