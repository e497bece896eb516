// Package clock provides the wall clock used outside tests.
package clock

import (
	"time"

	"clubinex/internal/domain/service"
)

type systemClock struct{}

// New returns a clock reading the system time in UTC.
func New() service.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
