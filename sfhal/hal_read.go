package sfhal

// Read returns exactly length bytes starting at addr. Fast read discards
// the dummy byte the chip sends after the address.
func (h *HAL) Read(addr int, length int) ([]byte, error) {
	if err := h.table.CheckRead(addr, length); err != nil {
		return nil, err
	}

	buf, err := h.scratchGet(length)
	if err != nil {
		return nil, err
	}
	defer h.scratchPut(buf)

	if err := h.state.acquire(eventRead); err != nil {
		return nil, err
	}
	defer h.release()

	work := (*buf)[:length]
	if err := h.readInto(addr, work); err != nil {
		return nil, err
	}

	out := make([]byte, length)
	copy(out, work)

	h.countTransfer(addr, length)

	return out, nil
}

func (h *HAL) readInto(addr int, buf []byte) (err error) {
	t := h.transport
	if err := t.Enter(); err != nil {
		return err
	}
	defer func() {
		if exitErr := t.Exit(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	h.log(2, "Reading %06x: %d bytes", addr, len(buf))

	if err := t.WaitIdle(); err != nil {
		return err
	}
	if err := t.Select(); err != nil {
		return err
	}

	cmd := byte(cmdRead)
	if h.config.Profile.UseFastRead {
		cmd = cmdFastRead
	}
	if err := sendCommand(t, cmd, addr); err != nil {
		return err
	}

	if h.config.Profile.UseFastRead {
		if _, err := t.ReadByte(); err != nil {
			return err
		}
	}

	for i := range buf {
		b, err := t.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}

	if err := t.Deselect(); err != nil {
		return err
	}
	return t.WaitIdle()
}
