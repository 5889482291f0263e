package engine

import "errors"

var (
	ErrMissingNID      = errors.New("engine: message missing NID_MESSAGE")
	ErrMissingOrigin   = errors.New("engine: message missing origin")
	ErrLoopback        = errors.New("engine: message origin is local, not wire (loop guard)")
	ErrMessageNotAdmitted = errors.New("engine: NID_MESSAGE not admitted in current state")
	ErrTemplateMissing = errors.New("engine: no template registered for NID_MESSAGE")
	ErrNoHandler       = errors.New("engine: no handler registered for NID_MESSAGE")
)
