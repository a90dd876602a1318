// internal/service/order/domain/pricing.go
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryLeadTime 取件开始到预计送达的固定间隔
const DeliveryLeadTime = 48 * time.Hour

// MaxEstimatedTotal 估价上限，换算成最小货币单位（×100）后仍在 int64 范围内
var MaxEstimatedTotal = decimal.NewFromInt(math.MaxInt64 / 100)

// ComputePrice 按整数货币单位计算估价，四舍五入（半数进位）。
// weightKg 必须为正，且 PriceInRange 为 true，由调用方校验。
func ComputePrice(weightKg, pricePerKg decimal.Decimal) int64 {
	return weightKg.Mul(pricePerKg).Round(0).IntPart()
}

func PriceInRange(weightKg, pricePerKg decimal.Decimal) bool {
	return weightKg.Mul(pricePerKg).Round(0).LessThanOrEqual(MaxEstimatedTotal)
}

// ComputeDeliveryDeadline 预计送达时间 = 取件开始 + 48 小时
func ComputeDeliveryDeadline(pickupStart time.Time) time.Time {
	return pickupStart.Add(DeliveryLeadTime)
}

// PickupStart 把 "2024-06-01" + "08:00-10:00" 解析为 loc 时区下的取件开始时刻
func PickupStart(date, window string, loc *time.Location) (time.Time, error) {
	start, _, ok := strings.Cut(window, "-")
	if !ok {
		return time.Time{}, fmt.Errorf("pickup window %q is not HH:MM-HH:MM", window)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+strings.TrimSpace(start), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("pickup start: %w", err)
	}
	return t, nil
}
