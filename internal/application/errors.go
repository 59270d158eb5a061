package application

import "errors"

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")
var ErrBadRequest = errors.New("bad request")

// ErrInducedFailure is returned by the *ThenFail operations after their write is staged.
var ErrInducedFailure = errors.New("induced failure")
