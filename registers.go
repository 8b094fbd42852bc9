package usart

import "fmt"

// Reg identifies one register of the peripheral.
type Reg uint8

const (
	RegBaudHigh Reg = iota
	RegBaudLow
	RegStatus
	RegControl
	RegFrame
	RegData

	numRegs
)

var regNames = [...]string{
	RegBaudHigh: "BAUDH",
	RegBaudLow:  "BAUDL",
	RegStatus:   "STATUS",
	RegControl:  "CONTROL",
	RegFrame:    "FRAME",
	RegData:     "DATA",
}

func (r Reg) String() string {
	if r < numRegs {
		return regNames[r]
	}
	return fmt.Sprintf("Reg(%d)", uint8(r))
}

// Status register bits.
const (
	StatusOverrun    uint8 = 1 << 3
	StatusFrameError uint8 = 1 << 4
	StatusDataEmpty  uint8 = 1 << 5
	StatusTxComplete uint8 = 1 << 6
	StatusRxComplete uint8 = 1 << 7
)

// Control register bits.
const (
	ControlTxEnable uint8 = 1 << 3
	ControlRxEnable uint8 = 1 << 4
)

// Frame8N1 selects 8 data bits, no parity and one stop bit.
const Frame8N1 uint8 = 0x06

// Registers is the memory-mapped register set behind a Line.
//
// Register access has no error path. Reading RegData consumes the received
// byte and clears StatusRxComplete. Writing RegData starts a transmission.
type Registers interface {
	ReadReg(r Reg) uint8
	WriteReg(r Reg, v uint8)
}
