// internal/service/order/domain/event.go
package domain

import "time"

type OrderEventType string

const (
	EventOrderPlaced        OrderEventType = "order.placed"
	EventOrderPaid          OrderEventType = "order.paid"
	EventOrderStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent 是发布到 order-events 主题的订单生命周期事件，key 为订单 id
type OrderEvent struct {
	EventID    string         `json:"eventId"`
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"orderId"`
	OwnerID    string         `json:"ownerId,omitempty"`
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurredAt"`

	// 以下字段按事件类型填充
	TotalPrice         int64             `json:"totalPrice,omitempty"`
	Currency           string            `json:"currency,omitempty"`
	PickupDate         string            `json:"pickupDate,omitempty"`
	PickupWindow       string            `json:"pickupWindow,omitempty"`
	DeliveryEstimateAt *time.Time        `json:"deliveryEstimateAt,omitempty"`
	Status             FulfillmentStatus `json:"status,omitempty"`
}

// NewOrderEvent 用订单当前快照构造事件
func NewOrderEvent(eventID string, typ OrderEventType, o *Order, at time.Time) OrderEvent {
	ev := OrderEvent{
		EventID:    eventID,
		Type:       typ,
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Email:      o.Contact.Email,
		Name:       o.Contact.Name,
		OccurredAt: at,
	}
	switch typ {
	case EventOrderPlaced:
		deadline := o.DeliveryEstimateAt
		ev.TotalPrice = o.EstimatedTotalPrice
		ev.Currency = o.Currency
		ev.PickupDate = o.Pickup.Date
		ev.PickupWindow = o.Pickup.Window
		ev.DeliveryEstimateAt = &deadline
	case EventOrderPaid:
		ev.TotalPrice = o.EstimatedTotalPrice
		ev.Currency = o.Currency
	case EventOrderStatusChanged:
		ev.Status = o.FulfillmentStatus
	}
	return ev
}

type IdentityEventType string

const (
	IdentityLogin  IdentityEventType = "login"
	IdentitySignup IdentityEventType = "signup"
)

// IdentityAuthenticated 由身份服务在登录或注册完成后发布
type IdentityAuthenticated struct {
	Type       IdentityEventType `json:"type"`
	UserID     string            `json:"userId"`
	Email      string            `json:"email"`
	OccurredAt time.Time         `json:"occurredAt"`
}
