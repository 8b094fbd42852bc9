// Package usart provides a minimal, byte-at-a-time USART line for embedded
// style serial peripherals.
//
// A Line drives an opaque register set through the Registers interface. The
// package ships two register files:
//   - Loopback, an in-memory register file where every transmitted byte is
//     received back, for tests and bring-up
//   - TTY (Linux only), which maps the register protocol onto a tty device
//     configured through termios
//
// The frame format is fixed at 8N1. There is no buffering: each send or
// receive moves exactly one byte, the way the hardware shift register does.
//
// A Line is not safe for concurrent use. At most one goroutine may send and at
// most one may receive at a time; callers layer their own locking if needed.
//
// Example usage:
//
//	tty, err := usart.OpenTTY("/dev/ttyUSB0", usart.DefaultClockHz)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tty.Close()
//
//	line, err := usart.Init(tty, usart.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	line.SendBlocking('A')
//	if b, ok := line.Poll(); ok {
//	    fmt.Printf("received %q\n", b)
//	}
package usart
