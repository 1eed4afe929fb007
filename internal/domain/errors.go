package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAlreadyVoted = errors.New("already voted")
	ErrVotingClosed = errors.New("voting closed")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")
)

type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindAlreadyVoted ErrorKind = "already_voted"
	KindVotingClosed ErrorKind = "voting_closed"
	KindInvalidState ErrorKind = "invalid_state"
	KindUnavailable  ErrorKind = "unavailable"
	KindInvalidInput ErrorKind = "invalid_input"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrAlreadyVoted, KindAlreadyVoted},
	{ErrVotingClosed, KindVotingClosed},
	{ErrInvalidState, KindInvalidState},
	{ErrUnavailable, KindUnavailable},
	{ErrInvalidInput, KindInvalidInput},
	{ErrRateLimited, KindRateLimited},
}

// KindOf maps an error chain to its wire code.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
