package usart

import (
	"context"

	"github.com/golang/glog"
)

// Line is an initialized USART: the divisor is programmed, the frame format
// fixed at 8N1 and both transmitter and receiver enabled.
type Line struct {
	regs    Registers
	config  ClockConfig
	divisor Divisor
}

// Init programs regs for cfg and returns the line that owns them.
// It fails only when cfg cannot produce a usable divisor.
func Init(regs Registers, cfg ClockConfig) (*Line, error) {
	divisor, err := ComputeDivisor(cfg)
	if err != nil {
		return nil, err
	}

	regs.WriteReg(RegBaudHigh, divisor.High())
	regs.WriteReg(RegBaudLow, divisor.Low())
	regs.WriteReg(RegFrame, Frame8N1)
	regs.WriteReg(RegControl, ControlRxEnable|ControlTxEnable)

	if glog.V(2) {
		glog.Infof("usart: divisor %d, requested %d baud, actual %.1f baud",
			divisor, cfg.BaudRate, divisor.Rate(cfg.SystemClockHz))
	}
	return &Line{regs: regs, config: cfg, divisor: divisor}, nil
}

// Config returns the configuration the line was initialized with.
func (l *Line) Config() ClockConfig {
	return l.config
}

// Divisor returns the programmed baud-rate divisor.
func (l *Line) Divisor() Divisor {
	return l.divisor
}

// SendBlocking spins until the transmit data register is empty and then
// writes b into it. It returns as soon as the write is issued, not when the
// byte has left the wire.
func (l *Line) SendBlocking(b byte) {
	for !l.txReady() {
	}
	l.regs.WriteReg(RegData, b)
}

// SendContext is SendBlocking bounded by ctx. Nothing is written if ctx ends
// before the data register empties.
func (l *Line) SendContext(ctx context.Context, b byte) error {
	for !l.txReady() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	l.regs.WriteReg(RegData, b)
	return nil
}

// Poll checks the receive-complete flag once. ok is false when no byte has
// arrived, which keeps a received 0x00 distinct from "nothing".
func (l *Line) Poll() (b byte, ok bool) {
	if l.regs.ReadReg(RegStatus)&StatusRxComplete == 0 {
		return 0, false
	}
	return l.regs.ReadReg(RegData), true
}

// ReceiveContext polls until a byte arrives or ctx ends.
func (l *Line) ReceiveContext(ctx context.Context) (byte, error) {
	for {
		if b, ok := l.Poll(); ok {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
	}
}

// errReporter is implemented by register files that can fail underneath the
// line, such as TTY.
type errReporter interface {
	Err() error
}

// Write sends p one byte at a time. It stops at the first byte the register
// file reports an error for and returns the number of bytes sent before it.
func (l *Line) Write(p []byte) (int, error) {
	er, _ := l.regs.(errReporter)
	for i, b := range p {
		l.SendBlocking(b)
		if er != nil {
			if err := er.Err(); err != nil {
				return i, err
			}
		}
	}
	return len(p), nil
}

func (l *Line) txReady() bool {
	return l.regs.ReadReg(RegStatus)&StatusDataEmpty != 0
}
