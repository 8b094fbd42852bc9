package usart

import "sync"

// Loopback is a simulated register file whose transmitter is wired to its own
// receiver. It has a single receive holding register: a byte that arrives
// while the previous one is unread is dropped and StatusOverrun is raised
// until the next read of RegData. StatusTxComplete is raised by a transmit and
// cleared by the next read of RegStatus.
//
// Loopback is safe for concurrent use.
type Loopback struct {
	mu   sync.Mutex
	regs [numRegs]uint8
}

// NewLoopback returns a reset register file with the transmit data register
// empty and both directions disabled.
func NewLoopback() *Loopback {
	lb := &Loopback{}
	lb.regs[RegStatus] = StatusDataEmpty
	return lb
}

// ReadReg implements Registers.
func (lb *Loopback) ReadReg(r Reg) uint8 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if r >= numRegs {
		return 0
	}
	v := lb.regs[r]
	switch r {
	case RegStatus:
		lb.regs[RegStatus] &^= StatusTxComplete
	case RegData:
		lb.regs[RegStatus] &^= StatusRxComplete | StatusOverrun
	}
	return v
}

// WriteReg implements Registers.
func (lb *Loopback) WriteReg(r Reg, v uint8) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	switch r {
	case RegData:
		lb.transmit(v)
	case RegStatus:
		// read-only
	default:
		if r < numRegs {
			lb.regs[r] = v
		}
	}
}

// Divisor returns the divisor currently held in the baud-rate registers.
func (lb *Loopback) Divisor() Divisor {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return divisorFromBytes(lb.regs[RegBaudHigh], lb.regs[RegBaudLow])
}

func (lb *Loopback) transmit(v uint8) {
	ctrl := lb.regs[RegControl]
	if ctrl&ControlTxEnable == 0 {
		return
	}
	lb.regs[RegStatus] |= StatusTxComplete
	if ctrl&ControlRxEnable == 0 {
		return
	}
	if lb.regs[RegStatus]&StatusRxComplete != 0 {
		lb.regs[RegStatus] |= StatusOverrun
		return
	}
	lb.regs[RegData] = v
	lb.regs[RegStatus] |= StatusRxComplete
}
