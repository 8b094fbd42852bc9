package usart

import (
	"fmt"
	"math"
	"os"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// TTY presents a Linux serial device as a USART register file.
//
// Baud and frame writes are held until RegControl enables the line, at which
// point the device is switched to raw 8N1 at the standard rate closest to the
// divisor's actual rate. Status is sampled with a zero-timeout poll(2), so
// reading it never blocks.
//
// Registers has no error channel. The first I/O error is latched and reported
// by Err; after it the device never reports received data, always reports an
// empty transmit register and drops every data write.
type TTY struct {
	fd        int
	file      *os.File
	clockHz   uint32
	closeOnce sync.Once

	mu      sync.Mutex
	shadow  [numRegs]uint8
	applied bool
	err     error
}

// OpenTTY opens device for a line clocked at clockHz. The clock is only used
// to turn programmed divisors back into a bit rate.
func OpenTTY(device string, clockHz uint32) (*TTY, error) {
	if clockHz == 0 {
		return nil, fmt.Errorf("open %s: clock must be positive", device)
	}
	fd, err := syscall.Open(device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	// The non-blocking open only guards against waiting on carrier detect.
	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}
	glog.V(2).Infof("usart: opened %s", device)
	return &TTY{
		fd:      fd,
		file:    os.NewFile(uintptr(fd), device),
		clockHz: clockHz,
	}, nil
}

// ReadReg implements Registers.
func (t *TTY) ReadReg(r Reg) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r {
	case RegStatus:
		return t.status()
	case RegData:
		if t.status()&StatusRxComplete == 0 {
			return t.shadow[RegData]
		}
		var b [1]byte
		n, err := t.file.Read(b[:])
		if err != nil {
			t.latch(fmt.Errorf("read: %w", err))
			return 0
		}
		if n == 1 {
			t.shadow[RegData] = b[0]
		}
		return t.shadow[RegData]
	}
	if r < numRegs {
		return t.shadow[r]
	}
	return 0
}

// WriteReg implements Registers.
func (t *TTY) WriteReg(r Reg, v uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r {
	case RegData:
		if t.shadow[RegControl]&ControlTxEnable == 0 || t.err != nil {
			return
		}
		if _, err := t.file.Write([]byte{v}); err != nil {
			t.latch(fmt.Errorf("write: %w", err))
		}
	case RegStatus:
	case RegControl:
		t.shadow[RegControl] = v
		if v&(ControlRxEnable|ControlTxEnable) != 0 && !t.applied {
			if err := t.applyTermios(); err != nil {
				t.latch(err)
				return
			}
			t.applied = true
		}
	case RegBaudHigh, RegBaudLow, RegFrame:
		t.shadow[r] = v
		t.applied = false
	}
}

// Err returns the first I/O error seen by the register file, if any.
func (t *TTY) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes the device. Safe to call multiple times; subsequent calls are
// no-ops.
func (t *TTY) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.file.Close()
	})
	return err
}

func (t *TTY) latch(err error) {
	if t.err == nil {
		glog.Warningf("usart: %s: %v", t.file.Name(), err)
		t.err = err
	}
}

// status must be called with mu held. A failed device reports an empty
// transmit register so senders drain into the dropped-write path instead of
// spinning.
func (t *TTY) status() uint8 {
	if t.err != nil {
		return StatusDataEmpty
	}
	var st uint8
	pfd := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN | unix.POLLOUT}}
	if _, err := unix.Poll(pfd, 0); err != nil {
		if err != unix.EINTR {
			t.latch(fmt.Errorf("poll: %w", err))
			return StatusDataEmpty
		}
		return 0
	}
	if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		t.latch(fmt.Errorf("poll: device hung up or errored (revents %#x)", pfd[0].Revents))
		return StatusDataEmpty
	}
	if pfd[0].Revents&unix.POLLIN != 0 && t.shadow[RegControl]&ControlRxEnable != 0 {
		st |= StatusRxComplete
	}
	if pfd[0].Revents&unix.POLLOUT != 0 {
		st |= StatusDataEmpty
	}
	return st
}

// applyTermios must be called with mu held.
func (t *TTY) applyTermios() error {
	termios, err := unix.IoctlGetTermios(t.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	// 8N1 is the only frame the line speaks.
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	divisor := divisorFromBytes(t.shadow[RegBaudHigh], t.shadow[RegBaudLow])
	rate := divisor.Rate(t.clockHz)
	std := nearestStandardRate(rate)
	if off := math.Abs(rate-float64(std.baud)) / float64(std.baud); off > 0.02 {
		glog.Warningf("usart: divisor %d gives %.1f baud, using %d (%.1f%% off)",
			divisor, rate, std.baud, off*100)
	}
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= std.flag

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(t.fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	glog.V(2).Infof("usart: %s raw 8N1 at %d baud", t.file.Name(), std.baud)
	return nil
}

type standardRate struct {
	baud uint32
	flag uint32
}

var standardRates = []standardRate{
	{1200, unix.B1200},
	{2400, unix.B2400},
	{4800, unix.B4800},
	{9600, unix.B9600},
	{19200, unix.B19200},
	{38400, unix.B38400},
	{57600, unix.B57600},
	{115200, unix.B115200},
	{230400, unix.B230400},
	{460800, unix.B460800},
	{921600, unix.B921600},
}

func nearestStandardRate(rate float64) standardRate {
	best := standardRates[0]
	for _, sr := range standardRates[1:] {
		if math.Abs(rate-float64(sr.baud)) < math.Abs(rate-float64(best.baud)) {
			best = sr
		}
	}
	return best
}
