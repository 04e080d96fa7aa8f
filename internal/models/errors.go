package models

import "errors"

var (
	// ErrConfiguration marks missing or invalid startup settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataAccess marks a failed query or write against the store.
	ErrDataAccess = errors.New("data access error")

	// ErrDispatch marks a message the messaging channel refused to deliver.
	ErrDispatch = errors.New("dispatch error")

	// ErrState marks a dialogue turn with no matching session handler.
	ErrState = errors.New("dialogue state error")

	ErrNotFound = errors.New("not found")
)
