// Package serialport opens the serial link to the exposure monitor. Device
// discovery and OS path naming stay with the caller; this package only maps
// a validated configuration onto an ordered byte channel.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

const (
	// DefaultPort is where the instrument enumerates on Linux.
	DefaultPort = "/dev/ttyACM0"

	DefaultBaudRate    = 115200
	DefaultReadTimeout = 2 * time.Second
)

// Config is the serial link configuration.
type Config struct {
	Port        string       `yaml:"port"`
	BaudRate    uint         `yaml:"baudRate"`
	ReadTimeout TimeDuration `yaml:"readTimeout"`
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("serialport.Config: port is required")
	}
	if c.BaudRate == 0 {
		return fmt.Errorf("serialport.Config: baud rate must be positive")
	}
	if time.Duration(c.ReadTimeout) < 0 {
		return fmt.Errorf("serialport.Config: read timeout must not be negative")
	}
	return nil
}

// ApplyDefaults fills unset fields with the instrument defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = TimeDuration(DefaultReadTimeout)
	}
}

// Port is an open serial link. Reads return with whatever bytes are
// available within the configured read timeout; an idle timeout surfaces
// as (0, nil), never as an error, because a serial line has no EOF.
type Port struct {
	rwc io.ReadWriteCloser
}

// Open opens the serial device described by the configuration with the
// instrument's fixed 8N1 line settings.
func Open(c *Config) (*Port, error) {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rwc, err := serial.Open(serial.OpenOptions{
		PortName:              c.Port,
		BaudRate:              c.BaudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(time.Duration(c.ReadTimeout) / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", c.Port, err)
	}

	return &Port{rwc: rwc}, nil
}

func (p *Port) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		// Read timeout with no data; the link itself is fine.
		return 0, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

// Close releases the serial device.
func (p *Port) Close() error {
	return p.rwc.Close()
}
