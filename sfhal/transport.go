package sfhal

// Transport is the byte level path to the chip. Every wait is bounded and
// reports ErrorTimeout (wrapped) when the bound runs out.
type Transport interface {
	// Enter and Exit bracket every operation, switching the controller
	// between command mode and its idle mode.
	Enter() error
	Exit() error

	Select() error
	Deselect() error

	// WriteByte pushes one byte towards the chip. Drain waits until all
	// pushed bytes have left the controller.
	WriteByte(b byte) error
	Drain() error

	// ReadByte clocks in one byte once the controller reports data ready.
	ReadByte() (byte, error)

	// WaitIdle polls the chip status register until the busy bit clears.
	WaitIdle() error
}

const (
	cmdWriteEnable   = 0x06
	cmdSectorErase   = 0x20
	cmdBlockErase32K = 0x52
	cmdBlockErase    = 0xd8
	cmdProgram       = 0x02
	cmdRead          = 0x03
	cmdFastRead      = 0x0b
	cmdIdentify      = 0x9f
)

const (
	fifoSize   = 16
	cycleBytes = 256
)

/* Send a command with a 24-bit address, waiting for each byte to go out.
 * Chip select must already be asserted. */
func sendCommand(t Transport, cmd byte, addr int) error {
	out := [4]byte{cmd, byte(addr >> 16), byte(addr >> 8), byte(addr)}
	for _, b := range out {
		if err := t.WriteByte(b); err != nil {
			return err
		}
		if err := t.Drain(); err != nil {
			return err
		}
	}
	return nil
}

func sendSingle(t Transport, cmd byte) error {
	if err := t.Select(); err != nil {
		return err
	}
	if err := t.WriteByte(cmd); err != nil {
		return err
	}
	if err := t.Drain(); err != nil {
		return err
	}
	return t.Deselect()
}

/* Wait for the previous operation, enable writes and start an addressed
 * command. The caller deasserts chip select when done. */
func startWriteCommand(t Transport, cmd byte, addr int) error {
	if err := t.WaitIdle(); err != nil {
		return err
	}
	if err := sendSingle(t, cmdWriteEnable); err != nil {
		return err
	}
	if err := t.Select(); err != nil {
		return err
	}
	return sendCommand(t, cmd, addr)
}
