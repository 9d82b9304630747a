// Package debugger holds definition of Debugger used for dumping outgoing
// requests and incoming responses in human friendly form.
package debugger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hokaccha/go-prettyjson"
	"github.com/pawelWritesCode/df"
)

// Debugger represents debugger.
type Debugger interface {
	// Print prints provided info.
	Print(info string)

	// IsOn tells whether debugging mode is activated.
	IsOn() bool

	// TurnOn turns on debugging mode.
	TurnOn()

	// TurnOff turns off debugging mode.
	TurnOff()
}

// Service is utility tool for debugging.
type Service struct {
	// actualState tells whether debugger is on/off, true = on, false = off.
	actualState bool

	// isColored determines whether output will be colored.
	isColored bool

	// limit is the maximum number of bytes to be printed.
	limit uint16

	// writer is place where output will be written.
	writer io.Writer
}

func New(isOn, isColored bool, bytesLimit uint16, writer io.Writer) *Service {
	return &Service{actualState: isOn, isColored: isColored, limit: bytesLimit, writer: writer}
}

// NewDefault returns *Service writing to stdout with output limit up to 3072 bytes.
func NewDefault(isOn bool) *Service {
	return &Service{actualState: isOn, limit: 3072, writer: os.Stdout, isColored: true}
}

// IsOn tells whether debugging mode is activated.
func (d *Service) IsOn() bool {
	return d.actualState
}

// TurnOn turns on debugging mode.
func (d *Service) TurnOn() {
	d.actualState = true
}

// TurnOff turns off debugging mode.
func (d *Service) TurnOff() {
	d.actualState = false
}

// Print prints provided info.
func (d *Service) Print(info string) {
	_, _ = fmt.Fprintln(d.writer, d.prepareMessage(info))
}

// prepareMessage pretty prints JSON payloads and trims output to configured limit.
func (d *Service) prepareMessage(info string) string {
	var output = []byte(info)

	if df.IsJSON([]byte(info)) {
		var rm json.RawMessage
		_ = json.Unmarshal([]byte(info), &rm)

		if d.isColored {
			output, _ = prettyjson.Marshal(rm)
		} else {
			output, _ = json.MarshalIndent(rm, "", "\t")
		}
	}

	var bytesToPrint uint16
	if len(output) <= int(d.limit) {
		bytesToPrint = uint16(len(output))
	} else {
		bytesToPrint = d.limit
	}

	return string(output[:bytesToPrint])
}
