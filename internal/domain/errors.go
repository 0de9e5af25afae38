package domain

import (
	"errors"
	"strings"
)

// ErrProfileNotFound возвращается, если источник не знает такого участника.
var ErrProfileNotFound = errors.New("profile not found")

// ErrSourceNotConfigured возвращается адаптером, если обязательные параметры источника не заданы.
var ErrSourceNotConfigured = errors.New("source not configured")

// ErrCacheMiss возвращается кэшем при отсутствии ключа.
var ErrCacheMiss = errors.New("cache miss")

// MissingCapabilityError означает, что у токена навсегда нет нужных прав.
type MissingCapabilityError struct {
	Scopes []string
}

func (e *MissingCapabilityError) Error() string {
	if len(e.Scopes) == 0 {
		return "missing capability"
	}
	return "missing capability: " + strings.Join(e.Scopes, ", ")
}

// IsMissingCapability проверяет цепочку ошибок на MissingCapabilityError.
func IsMissingCapability(err error) (*MissingCapabilityError, bool) {
	var capErr *MissingCapabilityError
	if errors.As(err, &capErr) {
		return capErr, true
	}
	return nil, false
}
