package spibus

import (
	"fmt"

	"github.com/BertoldVdb/spiflash-tools/sfhal"
)

const (
	opReadStatus = 0x05
	statusBusy   = 0x01

	defaultPollLimit = 1 << 20
)

type LogFunc func(level int, format string, param ...interface{})

type ControllerConfig struct {
	// PollLimit bounds every wait on the controller or the chip.
	PollLimit int

	LogFunc LogFunc
}

// Controller drives the board's SPI controller block one byte at a time.
type Controller struct {
	regs   Registers
	config ControllerConfig
}

var _ sfhal.Transport = (*Controller)(nil)

func NewController(regs Registers, config ControllerConfig) *Controller {
	if config.PollLimit <= 0 {
		config.PollLimit = defaultPollLimit
	}
	return &Controller{
		regs:   regs,
		config: config,
	}
}

func (c *Controller) log(level int, format string, param ...interface{}) {
	if c.config.LogFunc != nil {
		c.config.LogFunc(level, format, param...)
	}
}

func (c *Controller) Enter() error {
	if err := c.Deselect(); err != nil {
		return err
	}
	return c.regs.WriteReg(RegControl, ControlCommand)
}

func (c *Controller) Exit() error {
	if err := c.Deselect(); err != nil {
		return err
	}
	return c.regs.WriteReg(RegControl, ControlMemory)
}

func (c *Controller) Select() error {
	return c.regs.WriteReg(RegCSSel, 0)
}

func (c *Controller) Deselect() error {
	return c.regs.WriteReg(RegCSSel, 1)
}

func (c *Controller) WriteByte(b byte) error {
	c.log(3, "SPIOut:   %02x", b)
	return c.regs.WriteReg(RegOut, b)
}

func (c *Controller) pollStatus(mask byte, what string) error {
	for i := 0; i < c.config.PollLimit; i++ {
		status, err := c.regs.ReadReg(RegStatus)
		if err != nil {
			return err
		}
		if status&mask != 0 {
			return nil
		}
	}

	err := timeoutError(what, c.config.PollLimit)
	if code, regErr := c.regs.ReadReg(RegError); regErr == nil && code != 0 {
		err = fmt.Errorf("%w (error register %02x)", err, code)
	}
	return err
}

func (c *Controller) Drain() error {
	return c.pollStatus(statusWriteOK, "write complete")
}

/* Writing the input register starts the next fetch, the byte is valid
 * once GET_OK shows up. */
func (c *Controller) ReadByte() (byte, error) {
	if err := c.regs.WriteReg(RegIn, 0); err != nil {
		return 0, err
	}
	if err := c.pollStatus(statusGetOK, "data ready"); err != nil {
		return 0, err
	}

	b, err := c.regs.ReadReg(RegIn)
	if err != nil {
		return 0, err
	}
	c.log(3, "SPIIn:    %02x", b)
	return b, nil
}

func (c *Controller) ReadStatus() (byte, error) {
	if err := c.Select(); err != nil {
		return 0, err
	}
	if err := c.WriteByte(opReadStatus); err != nil {
		return 0, err
	}
	if err := c.Drain(); err != nil {
		return 0, err
	}
	status, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	return status, c.Deselect()
}

func (c *Controller) WaitIdle() error {
	if err := c.Deselect(); err != nil {
		return err
	}

	for i := 0; i < c.config.PollLimit; i++ {
		status, err := c.ReadStatus()
		if err != nil {
			return err
		}
		if status&statusBusy == 0 {
			return nil
		}
	}

	return timeoutError("flash idle", c.config.PollLimit)
}
