package serialmux

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the NMEA-standard rate most receivers ship with.
const DefaultBaudRate = 9600

// PortOptions describes how to open the receiver's serial port.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and fills in defaults (9600 8N1).
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch parity := strings.TrimSpace(strings.ToUpper(opts.Parity)); parity {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// String renders normalized options as "9600/8N1".
func (o PortOptions) String() string {
	n, err := o.Normalize()
	if err != nil {
		return fmt.Sprintf("invalid(%d/%d%s%d)", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
	}
	return fmt.Sprintf("%d/%d%s%d", n.BaudRate, n.DataBits, n.Parity, n.StopBits)
}

// ParsePortSpec parses "baud" or "baud/8N1" as given to the -serial flag.
func ParsePortSpec(spec string) (PortOptions, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PortOptions{}.Normalize()
	}
	baudPart, framing, hasFraming := strings.Cut(spec, "/")
	baud, err := strconv.Atoi(baudPart)
	if err != nil || baud <= 0 {
		return PortOptions{}, fmt.Errorf("invalid baud rate %q", baudPart)
	}
	opts := PortOptions{BaudRate: baud}
	if hasFraming {
		if len(framing) != 3 {
			return PortOptions{}, fmt.Errorf("invalid framing %q: expected e.g. 8N1", framing)
		}
		if opts.DataBits, err = strconv.Atoi(framing[:1]); err != nil {
			return PortOptions{}, fmt.Errorf("invalid data bits in %q", framing)
		}
		opts.Parity = framing[1:2]
		if opts.StopBits, err = strconv.Atoi(framing[2:]); err != nil {
			return PortOptions{}, fmt.Errorf("invalid stop bits in %q", framing)
		}
	}
	return opts.Normalize()
}

// SerialMode converts the options into the mode go.bug.st/serial opens
// ports with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}
