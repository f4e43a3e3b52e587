package common

import "errors"

var (
	ErrNotFound     = errors.New("requested item not found")
	ErrBadRequest   = errors.New("bad request")
	ErrNoItemsFound = errors.New("no services detected")
)
