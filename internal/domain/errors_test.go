package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		err  error
		want ErrorKind
	}{
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("room abc: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("set track: %w", ErrUnauthorized), KindUnauthorized},
		{ErrAlreadyVoted, KindAlreadyVoted},
		{ErrVotingClosed, KindVotingClosed},
		{ErrInvalidState, KindInvalidState},
		{fmt.Errorf("save: %w", ErrUnavailable), KindUnavailable},
		{fmt.Errorf("ballot: %w", ErrInvalidInput), KindInvalidInput},
		{fmt.Errorf("vote: %w", ErrRateLimited), KindRateLimited},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, KindOf(tc.err), tc.err.Error())
	}
}

func TestRequiredVotes(t *testing.T) {
	testCases := []struct {
		members int
		want    int
	}{
		{0, 0}, {1, 1}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {10, 5},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, RequiredVotes(tc.members), "members=%d", tc.members)
	}
}

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("m1", "  Emma ", true)
	assert.NoError(t, err)
	assert.Equal(t, Identity{MemberID: "m1", DisplayName: "Emma", CanHost: true}, id)

	_, err = NewIdentity("", "x", false)
	assert.ErrorIs(t, err, ErrMemberIDEmpty)

	_, err = NewIdentity("m1", "a name that is definitely longer than allowed", false)
	assert.ErrorIs(t, err, ErrDisplayNameTooLong)
}

func TestRoomClone_Independent(t *testing.T) {
	r := &Room{
		ID:       "r1",
		Members:  map[MemberID]*Member{"a": {ID: "a", Role: RoleHost}},
		Location: &Location{Latitude: 1, Longitude: 2},
		Vote:     &VoteSession{Ballots: map[MemberID]Ballot{"a": BallotDown}},
	}
	c := r.Clone()
	c.Members["b"] = &Member{ID: "b"}
	c.Members["a"].Role = RoleListener
	c.Location.Latitude = 5
	c.Vote.Ballots["b"] = BallotUp

	assert.Len(t, r.Members, 1)
	assert.Equal(t, RoleHost, r.Members["a"].Role)
	assert.Equal(t, 1.0, r.Location.Latitude)
	assert.Len(t, r.Vote.Ballots, 1)
}
