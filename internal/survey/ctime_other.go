//go:build !linux && !darwin

package survey

import (
	"errors"
	"time"
)

func statCreated(string) (time.Time, error) {
	return time.Time{}, errors.ErrUnsupported
}
