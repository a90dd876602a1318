package infrastructure

import (
	"freshdrop/internal/service/order/domain"

	"github.com/rs/zerolog/log"
)

// ToDomainOrder 将数据库模型转换为领域模型，旧的状态标签在这里被规范化
func ToDomainOrder(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	status, err := domain.ParseFulfillmentStatus(m.Status)
	if err != nil {
		log.Warn().Str("order_id", m.ID).Str("status", m.Status).Msg("unknown fulfillment status in store")
		status = domain.FulfillmentStatus(m.Status)
	}

	o := &domain.Order{
		ID:      m.ID,
		OwnerID: deref(m.UserID),
		Contact: domain.Contact{
			Email: m.CustomerEmail,
			Name:  m.CustomerName,
			Phone: m.CustomerPhone,
		},
		Address: domain.Address{
			Line1:      m.AddressLine1,
			Line2:      deref(m.AddressLine2),
			PostalCode: m.PostalCode,
			City:       m.City,
		},
		Pickup: domain.Pickup{
			Date:   m.PickupDate,
			Window: m.PickupWindow,
		},
		EstimatedWeightKg:   m.EstimatedWeightKg,
		PricePerKg:          m.PricePerKg,
		EstimatedTotalPrice: m.EstimatedTotalPrice,
		Currency:            m.Currency,
		DeliveryEstimateAt:  m.DeliveryEstimateAt,
		FulfillmentStatus:   status,
		PaymentStatus:       domain.PaymentStatus(m.PaymentStatus),
		PaymentSessionRef:   deref(m.StripeCheckoutSessionID),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.PaidAt != nil {
		paidAt := *m.PaidAt
		o.PaidAt = &paidAt
	}
	return o
}

// FromDomainOrder 将领域模型转换为数据库模型（用于插入），时间统一存 UTC
func FromDomainOrder(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	m := &OrderModel{
		ID:                      o.ID,
		UserID:                  ref(o.OwnerID),
		CustomerEmail:           o.Contact.Email,
		CustomerName:            o.Contact.Name,
		CustomerPhone:           o.Contact.Phone,
		AddressLine1:            o.Address.Line1,
		AddressLine2:            ref(o.Address.Line2),
		PostalCode:              o.Address.PostalCode,
		City:                    o.Address.City,
		PickupDate:              o.Pickup.Date,
		PickupWindow:            o.Pickup.Window,
		EstimatedWeightKg:       o.EstimatedWeightKg,
		PricePerKg:              o.PricePerKg,
		EstimatedTotalPrice:     o.EstimatedTotalPrice,
		Currency:                o.Currency,
		DeliveryEstimateAt:      o.DeliveryEstimateAt.UTC(),
		Status:                  string(o.FulfillmentStatus),
		PaymentStatus:           string(o.PaymentStatus),
		StripeCheckoutSessionID: ref(o.PaymentSessionRef),
		CreatedAt:               o.CreatedAt.UTC(),
		UpdatedAt:               o.UpdatedAt.UTC(),
	}
	if o.PaidAt != nil {
		paidAt := o.PaidAt.UTC()
		m.PaidAt = &paidAt
	}
	return m
}

func ToDomainProfile(m *ProfileModel) *domain.Profile {
	if m == nil {
		return nil
	}
	return &domain.Profile{
		ID:        m.ID,
		Role:      m.Role,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Phone:     m.Phone,
	}
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
