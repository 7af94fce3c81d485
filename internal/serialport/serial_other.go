//go:build !linux

package serialport

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
)

// Open opens the port in 8N1 mode at the given baud rate.
func Open(path string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              path,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       1,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}
