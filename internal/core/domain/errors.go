package domain

import "errors"

// Sentinel errors shared across the dispatch and scan paths. Handlers wrap
// these with fmt.Errorf("...: %w", err) so callers can match with errors.Is.
var (
	ErrNotSupported   = errors.New("not supported")
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrInternal       = errors.New("internal error")
	ErrShortHeader    = errors.New("service header too short")
	ErrUnknownOrdinal = errors.New("unknown service ordinal")
	ErrNoMlmeBound    = errors.New("no mlme bound")
	ErrBadFrame       = errors.New("unrecognized frame control")
)
