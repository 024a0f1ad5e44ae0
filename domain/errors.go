package domain

import "errors"

var (
	UnexpectedDatabaseError   = errors.New("database-error")
	ErrPersistenceUnavailable = errors.New("persistence-unavailable")
	ErrRoomRowNotFound        = errors.New("room-row-not-found")
	ErrMembershipNotFound     = errors.New("membership-not-found")
)
