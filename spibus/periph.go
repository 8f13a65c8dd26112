package spibus

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BertoldVdb/spiflash-tools/sfhal"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// PeriphTransport runs the byte protocol over any periph.io SPI connection.
// Chip select is a plain GPIO held low across many transfers, the port's
// own chip select is not used.
type PeriphTransport struct {
	conn spi.Conn
	cs   gpio.PinIO

	config ControllerConfig

	// PollInterval is slept between busy polls.
	PollInterval time.Duration
}

var _ sfhal.Transport = (*PeriphTransport)(nil)

func NewPeriphTransport(conn spi.Conn, cs gpio.PinIO, config ControllerConfig) *PeriphTransport {
	if config.PollLimit <= 0 {
		config.PollLimit = defaultPollLimit
	}
	return &PeriphTransport{
		conn:   conn,
		cs:     cs,
		config: config,
	}
}

func (p *PeriphTransport) log(level int, format string, param ...interface{}) {
	if p.config.LogFunc != nil {
		p.config.LogFunc(level, format, param...)
	}
}

func (p *PeriphTransport) Enter() error {
	return p.Deselect()
}

func (p *PeriphTransport) Exit() error {
	return p.Deselect()
}

func (p *PeriphTransport) Select() error {
	return p.cs.Out(gpio.Low)
}

func (p *PeriphTransport) Deselect() error {
	return p.cs.Out(gpio.High)
}

func (p *PeriphTransport) WriteByte(b byte) error {
	var rx [1]byte
	p.log(3, "SPIOut:   %02x", b)
	return p.conn.Tx([]byte{b}, rx[:])
}

// Drain has nothing to wait for, Tx only returns once the byte is out.
func (p *PeriphTransport) Drain() error {
	return nil
}

func (p *PeriphTransport) ReadByte() (byte, error) {
	var rx [1]byte
	if err := p.conn.Tx([]byte{0}, rx[:]); err != nil {
		return 0, err
	}
	p.log(3, "SPIIn:    %02x", rx[0])
	return rx[0], nil
}

func (p *PeriphTransport) WaitIdle() error {
	if err := p.Deselect(); err != nil {
		return err
	}

	for i := 0; i < p.config.PollLimit; i++ {
		rx := make([]byte, 2)
		if err := p.Select(); err != nil {
			return err
		}
		err := p.conn.Tx([]byte{opReadStatus, 0}, rx)
		if csErr := p.Deselect(); csErr != nil && err == nil {
			err = csErr
		}
		if err != nil {
			return err
		}

		if rx[1]&statusBusy == 0 {
			return nil
		}
		if p.PollInterval > 0 {
			time.Sleep(p.PollInterval)
		}
	}

	return timeoutError("flash idle", p.config.PollLimit)
}

var hostInitialized int32

// FT232H is an FTDI FT232H (or one channel of an FT2232H) used as SPI
// master with D4 as chip select.
type FT232H struct {
	*PeriphTransport

	port spi.PortCloser
}

func (f *FT232H) Close() error {
	return f.port.Close()
}

func OpenFT232H(vendorID uint16, productID uint16, clock physic.Frequency, config ControllerConfig) (*FT232H, error) {
	if atomic.CompareAndSwapInt32(&hostInitialized, 0, 1) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	var ft *ftdi.FT232H
	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || (productID != 0 && info.DevID != productID) {
			continue
		}
		if d, ok := dev.(*ftdi.FT232H); ok {
			ft = d
			break
		}
	}
	if ft == nil {
		return nil, errors.New("FT232H device not found")
	}

	port, err := ft.SPI()
	if err != nil {
		return nil, fmt.Errorf("failed to get SPI port: %w", err)
	}

	conn, err := port.Connect(clock, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, err
	}

	return &FT232H{
		PeriphTransport: NewPeriphTransport(conn, ft.D4, config),
		port:            port,
	}, nil
}
