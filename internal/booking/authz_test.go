package booking

import (
	"errors"
	"testing"

	"github.com/EpicMandM/station-booking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownedReservation() *models.Reservation {
	return &models.Reservation{ID: 42, RequesterID: "alice", OwnerID: "olga", State: models.StatePending}
}

func TestAuthorize(t *testing.T) {
	requester := Actor{ID: "alice", Role: RoleRequester}
	owner := Actor{ID: "olga", Role: RoleOwner}
	stranger := Actor{ID: "mallory", Role: RoleRequester}
	fakeOwner := Actor{ID: "mallory", Role: RoleOwner}
	requesterAsOwner := Actor{ID: "alice", Role: RoleOwner}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		ok     bool
	}{
		{"owner accepts", owner, ActionAccept, true},
		{"owner refuses", owner, ActionRefuse, true},
		{"requester cannot accept", requester, ActionAccept, false},
		{"requester claiming owner role cannot accept", requesterAsOwner, ActionAccept, false},
		{"other owner cannot refuse", fakeOwner, ActionRefuse, false},
		{"requester cancels", requester, ActionCancel, true},
		{"owner cancels", owner, ActionCancel, true},
		{"stranger cannot cancel", stranger, ActionCancel, false},
		{"stranger as owner cannot cancel", fakeOwner, ActionCancel, false},
		{"requester updates", requester, ActionUpdate, true},
		{"owner cannot update", owner, ActionUpdate, false},
		{"system starts", SystemActor, ActionStart, true},
		{"system completes", SystemActor, ActionComplete, true},
		{"owner starts", owner, ActionStart, true},
		{"requester cannot start", requester, ActionStart, false},
		{"system cannot accept", SystemActor, ActionAccept, false},
		{"system cannot cancel", SystemActor, ActionCancel, false},
		{"requester views", requester, ActionView, true},
		{"owner views", owner, ActionView, true},
		{"stranger cannot view", stranger, ActionView, false},
		{"empty actor", Actor{Role: RoleRequester}, ActionCancel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(ownedReservation(), tt.actor, tt.action)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var authErr *AuthorizationError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, ActorMismatch, authErr.Kind)
			assert.Equal(t, tt.action, authErr.Action)
		})
	}
}

func TestAuthorize_MissingAssociation(t *testing.T) {
	tests := []struct {
		name string
		res  *models.Reservation
	}{
		{"no requester", &models.Reservation{ID: 1, OwnerID: "olga"}},
		{"no owner", &models.Reservation{ID: 1, RequesterID: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.res, Actor{ID: "alice", Role: RoleRequester}, ActionCancel)
			var authErr *AuthorizationError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, MissingAssociation, authErr.Kind)
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("owner")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, r)

	r, err = ParseRole("requester")
	require.NoError(t, err)
	assert.Equal(t, RoleRequester, r)

	_, err = ParseRole("system")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}
