package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for login timing equalization
type TimingConfig struct {
	BaseDelayMs   int // Base delay in milliseconds
	RandomDelayMs int // Random delay range in milliseconds
}

// TimingDelay pads failed credential checks so that "unknown username" and
// "wrong password" take similar time from the caller's perspective.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandIntn returns a secure random number in [0, max)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// Wait applies the delay on failed attempts; successful attempts return
// immediately since bcrypt has already done comparable work.
func (td *TimingDelay) Wait(success bool) {
	if success {
		return
	}

	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		randomValue, err := cryptoRandIntn(td.config.RandomDelayMs)
		if err == nil {
			delay += time.Duration(randomValue) * time.Millisecond
		}
	}

	time.Sleep(delay)
}
