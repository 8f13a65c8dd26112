package sfhal

import "fmt"

/* Program in 256 byte cycles. Full cycles let the controller FIFO fill
 * and only wait for it every 16 bytes, the chip is polled once per cycle.
 * A trailing short cycle waits after every byte. */
func (h *HAL) program(addr int, data []byte) (int, error) {
	t := h.transport
	written := 0

	for len(data)-written >= cycleBytes {
		offset := addr + written
		if err := startWriteCommand(t, cmdProgram, offset); err != nil {
			return written, fmt.Errorf("program %06x: %w", offset, err)
		}

		for i, b := range data[written : written+cycleBytes] {
			if err := t.WriteByte(b); err != nil {
				return written, err
			}
			if i&(fifoSize-1) == fifoSize-1 {
				if err := t.Drain(); err != nil {
					return written, err
				}
			}
		}

		if err := t.Deselect(); err != nil {
			return written, err
		}
		if err := t.WaitIdle(); err != nil {
			return written, fmt.Errorf("program %06x: %w", offset, err)
		}

		written += cycleBytes
	}

	if written == len(data) {
		return written, nil
	}

	offset := addr + written
	h.log(2, "Programming tail at %06x: %d bytes", offset, len(data)-written)
	if err := startWriteCommand(t, cmdProgram, offset); err != nil {
		return written, fmt.Errorf("program %06x: %w", offset, err)
	}

	for _, b := range data[written:] {
		if err := t.WriteByte(b); err != nil {
			return written, err
		}
		if err := t.Drain(); err != nil {
			return written, err
		}
	}

	if err := t.Deselect(); err != nil {
		return written, err
	}
	if err := t.WaitIdle(); err != nil {
		return written, fmt.Errorf("program %06x: %w", offset, err)
	}

	return len(data), nil
}
