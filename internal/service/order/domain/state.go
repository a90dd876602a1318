// internal/service/order/domain/state.go
package domain

import (
	"fmt"
	"strings"
)

// FulfillmentStatus 订单履约状态。流转不做限制，管理员可以从任意状态改到任意状态。
type FulfillmentStatus string

const (
	StatusReceived  FulfillmentStatus = "RECEIVED" // 初始状态
	StatusBooked    FulfillmentStatus = "BOOKED"
	StatusPickedUp  FulfillmentStatus = "PICKED_UP"
	StatusWashing   FulfillmentStatus = "WASHING"
	StatusInTransit FulfillmentStatus = "IN_TRANSIT"
	StatusDelivered FulfillmentStatus = "DELIVERED" // 终态
	StatusCancelled FulfillmentStatus = "CANCELLED" // 终态，任意状态可达
)

// AllFulfillmentStatuses 按常规流程排序
var AllFulfillmentStatuses = []FulfillmentStatus{
	StatusReceived, StatusBooked, StatusPickedUp, StatusWashing,
	StatusInTransit, StatusDelivered, StatusCancelled,
}

// 旧数据中保存的瑞典语标签
var legacyStatusLabels = map[string]FulfillmentStatus{
	"MOTTAGEN":  StatusReceived,
	"BOKAD":     StatusBooked,
	"HÄMTAD":    StatusPickedUp,
	"TVÄTTAS":   StatusWashing,
	"PÅ_VÄG":    StatusInTransit,
	"LEVERERAD": StatusDelivered,
	"AVBRUTEN":  StatusCancelled,
}

// ParseFulfillmentStatus 接受规范 token 或旧标签，统一返回规范 token。
// 匹配是精确的，不做大小写折叠。
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range AllFulfillmentStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	if st, ok := legacyStatusLabels[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s FulfillmentStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentStatus 只会从 unpaid 变为 paid 一次
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)
