package spibus

import (
	"sync"

	"github.com/BertoldVdb/spiflash-tools/norsim"
)

// SimRegisters emulates the controller block in front of a simulated chip.
// Bytes written while the controller is not in command mode are dropped,
// like the real block does while it serves memory mapped reads.
type SimRegisters struct {
	mu sync.Mutex

	chip    *norsim.Chip
	control byte
	in      byte

	// Stall makes the status register never report completion.
	Stall bool

	writes [RegCount]int
	reads  [RegCount]int
}

func NewSimRegisters(chip *norsim.Chip) *SimRegisters {
	return &SimRegisters{
		chip:    chip,
		control: ControlMemory,
	}
}

func (s *SimRegisters) Chip() *norsim.Chip {
	return s.chip
}

func (s *SimRegisters) ReadReg(reg int) (byte, error) {
	if reg < 0 || reg >= RegCount {
		return 0, ErrorBadRegister
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[reg]++

	switch reg {
	case RegIn:
		return s.in, nil
	case RegControl:
		return s.control, nil
	case RegStatus:
		if s.Stall {
			return 0, nil
		}
		return statusWriteOK | statusGetOK, nil
	}
	return 0, nil
}

func (s *SimRegisters) WriteReg(reg int, value byte) error {
	if reg < 0 || reg >= RegCount {
		return ErrorBadRegister
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[reg]++

	commandMode := s.control == ControlCommand

	switch reg {
	case RegControl:
		s.control = value
	case RegCSSel:
		if value == 0 {
			s.chip.Select()
		} else {
			s.chip.Deselect()
		}
	case RegOut:
		if commandMode {
			s.chip.Transfer(value)
		}
	case RegIn:
		if commandMode {
			s.in = s.chip.Transfer(value)
		}
	}
	return nil
}

// Writes returns how often reg was written.
func (s *SimRegisters) Writes(reg int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[reg]
}

func (s *SimRegisters) Control() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control
}
