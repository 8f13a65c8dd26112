package spibus

import (
	"errors"
	"fmt"

	"github.com/BertoldVdb/spiflash-tools/sfhal"
)

// Registers gives access to the six byte wide registers of the SPI
// controller block.
type Registers interface {
	ReadReg(reg int) (byte, error)
	WriteReg(reg int, value byte) error
}

const (
	RegOut     = 0
	RegIn      = 1
	RegControl = 2
	RegStatus  = 3
	RegCSSel   = 4
	RegError   = 5

	RegCount = 6
)

const (
	statusWriteOK = 0x10
	statusGetOK   = 0x20

	controlFIFOEnable       = 0x10
	controlAutoFetchDisable = 0x20
	controlClockDivider     = 5

	// ControlCommand puts the controller in byte command mode, ControlMemory
	// returns it to memory mapped reads.
	ControlCommand = controlFIFOEnable | controlAutoFetchDisable | controlClockDivider
	ControlMemory  = 0x52

	DefaultPortBase = 0xfc00
)

var (
	ErrorInvalidResponse = errors.New("Received invalid response")
	ErrorBadRegister     = errors.New("Register index out of range")
)

func timeoutError(what string, limit int) error {
	return fmt.Errorf("%s not seen after %d polls: %w", what, limit, sfhal.ErrorTimeout)
}
