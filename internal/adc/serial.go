// Package adc reads the oven temperature sensor through a 12-bit ADC.
//
// The converter sits on a small microcontroller attached over a serial
// line. Each request "R\n" is answered with one decimal reading per line.
package adc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/sweeney/oven-controller/internal/logic"
)

const (
	// DefaultBaudRate is the converter's serial speed.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds one request/response exchange.
	DefaultTimeout = 500 * time.Millisecond
)

var (
	// ErrTimeout is returned when the converter does not answer in time.
	ErrTimeout = errors.New("adc: read timeout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("adc: closed")
)

var readCommand = []byte("R\n")

// Serial is a sensor on a serial-attached ADC. Safe for concurrent use;
// requests are serialised.
type Serial struct {
	mu     sync.Mutex
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	closed bool
	// stale is set after a failed exchange; a late reply may still arrive.
	stale bool
}

// OpenSerial opens the converter on port.
func OpenSerial(port string, baudRate int, timeout time.Duration) (*Serial, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", port, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to reset input buffer on %s: %w", port, err)
	}

	return newSerial(timeoutReader{p}), nil
}

func newSerial(conn io.ReadWriteCloser) *Serial {
	return &Serial{conn: conn, reader: bufio.NewReader(conn)}
}

// ReadRaw requests one reading and returns it.
func (s *Serial) ReadRaw() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.stale {
		if err := s.discardInput(); err != nil {
			return 0, fmt.Errorf("adc: reset input: %w", err)
		}
	}
	if _, err := s.conn.Write(readCommand); err != nil {
		s.stale = true
		return 0, fmt.Errorf("adc: send request: %w", err)
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		s.stale = true
		return 0, fmt.Errorf("adc: read response: %w", err)
	}
	return parseReading(line)
}

// discardInput drops buffered bytes so the next reply answers the next request.
func (s *Serial) discardInput() error {
	if r, ok := s.conn.(interface{ ResetInputBuffer() error }); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return err
		}
	}
	s.reader.Reset(s.conn)
	s.stale = false
	return nil
}

// Close releases the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func parseReading(line string) (int, error) {
	line = strings.TrimSpace(line)
	raw, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("adc: malformed reading %q: %w", line, err)
	}
	if err := logic.CheckRaw(raw); err != nil {
		return 0, fmt.Errorf("adc: %w", err)
	}
	return raw, nil
}

// timeoutReader turns the port's zero-byte timed-out read into ErrTimeout.
type timeoutReader struct {
	serial.Port
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.Port.Read(p)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}
