package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFulfillmentStatusCanonical(t *testing.T) {
	for _, st := range AllFulfillmentStatuses {
		got, err := ParseFulfillmentStatus(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
}

func TestParseFulfillmentStatusLegacyLabels(t *testing.T) {
	cases := map[string]FulfillmentStatus{
		"MOTTAGEN":  StatusReceived,
		"BOKAD":     StatusBooked,
		"HÄMTAD":    StatusPickedUp,
		"TVÄTTAS":   StatusWashing,
		"PÅ_VÄG":    StatusInTransit,
		"LEVERERAD": StatusDelivered,
		"AVBRUTEN":  StatusCancelled,
	}
	for label, want := range cases {
		got, err := ParseFulfillmentStatus(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got)
	}
}

func TestParseFulfillmentStatusRejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "received", "SHIPPED", "PAID"} {
		_, err := ParseFulfillmentStatus(s)
		assert.ErrorIs(t, err, ErrInvalidStatus, s)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusWashing.IsTerminal())
}
