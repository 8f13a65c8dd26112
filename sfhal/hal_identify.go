package sfhal

func (h *HAL) identify() (err error) {
	t := h.transport
	if err := t.Enter(); err != nil {
		return err
	}
	defer func() {
		if exitErr := t.Exit(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	if err := t.Select(); err != nil {
		return err
	}
	if err := t.WriteByte(cmdIdentify); err != nil {
		return err
	}
	if err := t.Drain(); err != nil {
		return err
	}

	var id uint32
	for i := 0; i < 3; i++ {
		b, err := t.ReadByte()
		if err != nil {
			return err
		}
		id = id<<8 | uint32(b)
	}

	if err := t.Deselect(); err != nil {
		return err
	}

	h.identity = id
	h.identityMatched = len(h.config.Profile.ExpectedIDs) == 0
	for _, m := range h.config.Profile.ExpectedIDs {
		if m == id {
			h.identityMatched = true
		}
	}

	return nil
}
