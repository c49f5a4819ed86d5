package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationState_Active(t *testing.T) {
	tests := []struct {
		state  ReservationState
		active bool
	}{
		{StatePending, true},
		{StateAccepted, true},
		{StateInProgress, true},
		{StateRefused, false},
		{StateCancelled, false},
		{StateCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.active, tt.state.Active())
		})
	}
}

func TestStationStatus_Bookable(t *testing.T) {
	assert.True(t, StationAvailable.Bookable())
	assert.True(t, StationOccupied.Bookable())
	assert.False(t, StationOutOfService.Bookable())
	assert.False(t, StationMaintenance.Bookable())
}

func TestParseStationStatus(t *testing.T) {
	st, err := ParseStationStatus("MAINTENANCE")
	require.NoError(t, err)
	assert.Equal(t, StationMaintenance, st)

	_, err = ParseStationStatus("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid station status")
}

func TestReservation_OmitsUnsetPrice(t *testing.T) {
	r := Reservation{ID: 7, State: StatePending}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "total_price")
	assert.NotContains(t, string(data), "resolved_at")
	assert.Contains(t, string(data), `"state":"PENDING"`)
}
