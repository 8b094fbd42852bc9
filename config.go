package usart

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultClockHz is the system clock the line assumes when none is given.
	DefaultClockHz uint32 = 16000000
	// DefaultBaudRate is the reference line speed.
	DefaultBaudRate uint32 = 115200

	// samplesPerBit is the receiver oversampling factor of the peripheral.
	samplesPerBit = 16
)

// ErrInvalidConfig indicates a clock configuration that cannot produce a
// usable baud-rate divisor.
var ErrInvalidConfig = errors.New("invalid clock configuration")

// ConfigError describes why a ClockConfig was rejected.
type ConfigError struct {
	Config ClockConfig
	Reason string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("clock %d Hz, baud %d: %s",
		e.Config.SystemClockHz, e.Config.BaudRate, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// ClockConfig pairs the peripheral clock with the requested line speed.
type ClockConfig struct {
	SystemClockHz uint32
	BaudRate      uint32
}

// DefaultConfig returns 115200 baud on a 16 MHz clock.
func DefaultConfig() ClockConfig {
	return ClockConfig{
		SystemClockHz: DefaultClockHz,
		BaudRate:      DefaultBaudRate,
	}
}

// Validate reports whether the configuration yields a meaningful divisor.
func (c ClockConfig) Validate() error {
	switch {
	case c.BaudRate == 0:
		return &ConfigError{Config: c, Reason: "baud rate must be positive"}
	case c.SystemClockHz == 0:
		return &ConfigError{Config: c, Reason: "system clock must be positive"}
	case uint64(c.SystemClockHz) < samplesPerBit*uint64(c.BaudRate):
		return &ConfigError{Config: c, Reason: "baud rate too high for system clock"}
	}
	if c.rawDivisor() >= math.MaxUint16+1 {
		return &ConfigError{Config: c, Reason: "divisor does not fit in 16 bits"}
	}
	return nil
}

func (c ClockConfig) rawDivisor() float64 {
	return float64(c.SystemClockHz)/(samplesPerBit*float64(c.BaudRate)) - 0.5
}

// Divisor is the value programmed into the baud-rate register pair.
type Divisor uint16

// ComputeDivisor derives the baud-rate divisor for cfg.
//
// The result is clock/(16*baud) - 0.5, truncated. This is biased one step
// low against round-to-nearest and must stay that way to match the timing of
// existing firmware.
func ComputeDivisor(cfg ClockConfig) (Divisor, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return Divisor(cfg.rawDivisor()), nil
}

// High returns the upper register byte.
func (d Divisor) High() uint8 {
	return uint8(d >> 8)
}

// Low returns the lower register byte.
func (d Divisor) Low() uint8 {
	return uint8(d)
}

// Rate returns the bit rate the divisor actually produces on clockHz.
func (d Divisor) Rate(clockHz uint32) float64 {
	return float64(clockHz) / (samplesPerBit * (float64(d) + 1))
}

func divisorFromBytes(high, low uint8) Divisor {
	return Divisor(high)<<8 | Divisor(low)
}
