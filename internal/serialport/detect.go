// Package serialport opens the receiver's telemetry serial port.
package serialport

import (
	"fmt"
	"os"
)

// Candidates lists the device paths AutoDetect tries, in order.
func Candidates() []string {
	out := make([]string, 0, 30)
	for _, pattern := range []string{"/dev/ttyUSB%d", "/dev/ttyACM%d", "/dev/ttyAMA%d"} {
		for i := 0; i < 10; i++ {
			out = append(out, fmt.Sprintf(pattern, i))
		}
	}
	return out
}

// AutoDetect returns the first candidate device that exists, or "".
func AutoDetect() string {
	return firstExisting(Candidates(), func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	})
}

func firstExisting(paths []string, exists func(string) bool) string {
	for _, p := range paths {
		if exists(p) {
			return p
		}
	}
	return ""
}
