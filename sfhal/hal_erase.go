package sfhal

import "fmt"

// Write erases every erase unit touched by [addr, addr+len(data)) and then
// programs data. Nothing reaches the transport before the request passed
// validation. The operation is not atomic: on a transport failure the
// target range is left partially erased or programmed and the number of
// bytes programmed so far is returned together with the error.
func (h *HAL) Write(addr int, data []byte) (int, error) {
	p, err := h.table.CheckWrite(addr, len(data))
	if err != nil {
		return 0, err
	}

	buf, err := h.scratchGet(len(data))
	if err != nil {
		return 0, err
	}
	defer h.scratchPut(buf)

	work := (*buf)[:len(data)]
	copy(work, data)

	if err := h.state.acquire(eventErase); err != nil {
		return 0, err
	}
	defer h.release()

	n, err := h.eraseWrite(p, addr, work)
	if err != nil {
		h.log(0, "Write at %06x failed after %d bytes: %v", addr, n, err)
		return n, err
	}

	h.countTransfer(addr, n)
	return n, nil
}

func (h *HAL) eraseWrite(p Partition, addr int, data []byte) (n int, err error) {
	t := h.transport
	if err := t.Enter(); err != nil {
		return 0, err
	}
	defer func() {
		if exitErr := t.Exit(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	h.log(2, "Erase write: addr=%06x len=%x partition=%s", addr, len(data), p.Name)

	last := addr + len(data)
	for offset := addr; offset < last; offset += p.EraseSize {
		if offset != addr {
			if err := h.state.advance(eventEraseNext); err != nil {
				return 0, err
			}
		}
		if err := h.eraseUnit(p.EraseOpcode, offset); err != nil {
			return 0, fmt.Errorf("erase %06x: %w", offset, err)
		}
	}

	if err := h.state.advance(eventProgram); err != nil {
		return 0, err
	}

	return h.program(addr, data)
}

func (h *HAL) eraseUnit(opcode byte, addr int) error {
	t := h.transport
	h.log(2, "Erasing %06x (opcode %02x)", addr, opcode)

	if err := startWriteCommand(t, opcode, addr); err != nil {
		return err
	}
	if err := t.Deselect(); err != nil {
		return err
	}
	return t.WaitIdle()
}
