package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputePrice(t *testing.T) {
	cases := []struct {
		weight string
		rate   string
		want   int64
	}{
		{"5", "60", 300},
		{"1.5", "60", 90},
		{"0.001", "60", 0},
		{"2.125", "60", 128},  // 127.5 向上
		{"2.124", "60", 127},  // 127.44
		{"3.3", "59.90", 198}, // 197.67
		{"0.5", "1", 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ComputePrice(dec(c.weight), dec(c.rate)), "%s x %s", c.weight, c.rate)
	}
}

func TestComputePriceMonotonic(t *testing.T) {
	rate := dec("60")
	prev := int64(-1)
	for w := dec("0.001"); w.LessThan(dec("20")); w = w.Add(dec("0.037")) {
		got := ComputePrice(w, rate)
		assert.GreaterOrEqual(t, got, prev, "weight %s", w)
		prev = got
	}
}

func TestComputeDeliveryDeadline(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC), ComputeDeliveryDeadline(start))
}

func TestComputeDeliveryDeadlineIsExactDurationAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	// 2024-03-31 切换夏令时，48 小时是精确时长而不是日历两天
	start := time.Date(2024, 3, 30, 8, 0, 0, 0, loc)
	deadline := ComputeDeliveryDeadline(start)
	assert.Equal(t, 48*time.Hour, deadline.Sub(start))
}

func TestPickupStart(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	got, err := PickupStart("2024-06-01", "08:00-10:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, loc), got)

	_, err = PickupStart("2024-06-01", "08:00", loc)
	assert.Error(t, err)
	_, err = PickupStart("01/06/2024", "08:00-10:00", loc)
	assert.Error(t, err)
}
