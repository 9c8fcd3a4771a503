package protocol

import (
	"errors"

	"skirmish.dev/internal/sim/battle"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBusy            = "E_BUSY"

	// Generation failures.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrConfiguration = "E_CONFIGURATION"
	ErrFormat        = "E_FORMAT"
	ErrPlacement     = "E_PLACEMENT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrConfiguration:   {},
	ErrFormat:          {},
	ErrPlacement:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a generation error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, battle.ErrConfiguration):
		return ErrConfiguration
	case errors.Is(err, battle.ErrFormat):
		return ErrFormat
	case errors.Is(err, battle.ErrPlacement):
		return ErrPlacement
	}
	return ErrInternal
}
