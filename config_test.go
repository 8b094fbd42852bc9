package usart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDivisor_ReferenceRates(t *testing.T) {
	cases := []struct {
		clock, baud uint32
		want        Divisor
	}{
		{16000000, 115200, 8},
		{16000000, 9600, 103},
		{16000000, 57600, 16},
		{16000000, 1000000, 0},
		{8000000, 9600, 51},
		{1048580, 1, 0xffff},
	}
	for _, c := range cases {
		d, err := ComputeDivisor(ClockConfig{SystemClockHz: c.clock, BaudRate: c.baud})
		require.NoError(t, err)
		require.Equal(t, c.want, d, "clock %d baud %d", c.clock, c.baud)
	}
}

func TestComputeDivisor_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	first, err := ComputeDivisor(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		d, err := ComputeDivisor(cfg)
		require.NoError(t, err)
		require.Equal(t, first, d)
	}
}

func TestComputeDivisor_NonIncreasingInBaud(t *testing.T) {
	prev := Divisor(0xffff)
	for baud := uint32(300); baud <= DefaultClockHz/16; baud += 97 {
		d, err := ComputeDivisor(ClockConfig{SystemClockHz: DefaultClockHz, BaudRate: baud})
		require.NoError(t, err)
		require.LessOrEqual(t, d, prev, "baud %d", baud)
		prev = d
	}
}

func TestComputeDivisor_Invalid(t *testing.T) {
	cases := []ClockConfig{
		{SystemClockHz: DefaultClockHz, BaudRate: 0},
		{SystemClockHz: 0, BaudRate: 9600},
		{SystemClockHz: DefaultClockHz, BaudRate: 1000001},
		{SystemClockHz: 4000000000, BaudRate: 50},
		{SystemClockHz: 1048584, BaudRate: 1},
	}
	for _, cfg := range cases {
		_, err := ComputeDivisor(cfg)
		require.Error(t, err, "%+v", cfg)
		require.True(t, errors.Is(err, ErrInvalidConfig))
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr))
		require.Equal(t, cfg, cerr.Config)
	}
}

func TestDivisor_Bytes(t *testing.T) {
	d := Divisor(0x1234)
	require.Equal(t, uint8(0x12), d.High())
	require.Equal(t, uint8(0x34), d.Low())
	require.Equal(t, d, divisorFromBytes(d.High(), d.Low()))
}

func TestDivisor_Rate(t *testing.T) {
	require.InDelta(t, 111111.1, Divisor(8).Rate(DefaultClockHz), 0.1)
	require.InDelta(t, 9615.4, Divisor(103).Rate(DefaultClockHz), 0.1)
}
