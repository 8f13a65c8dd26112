// Package norsim models a SPI NOR flash chip at the wire level: bytes are
// shifted in and out one at a time while chip select is asserted, and a
// command takes effect when chip select is released. Programming can only
// clear bits, erasing sets a whole block back to 0xFF, and both keep the
// busy bit set for a configurable number of status reads.
package norsim

import (
	"fmt"
	"os"
	"sync"
)

const (
	OpReadStatus    = 0x05
	OpWriteEnable   = 0x06
	OpWriteDisable  = 0x04
	OpSectorErase   = 0x20
	OpBlockErase32K = 0x52
	OpBlockErase    = 0xd8
	OpChipErase     = 0xc7
	OpProgram       = 0x02
	OpRead          = 0x03
	OpFastRead      = 0x0b
	OpIdentify      = 0x9f

	StatusBusy         = 1 << 0
	StatusWriteEnabled = 1 << 1

	PageSize = 256
)

// Erase records one accepted erase command.
type Erase struct {
	Opcode byte
	Addr   int
	Size   int
}

type Chip struct {
	mu sync.Mutex

	mem []byte
	id  uint32

	// BusyPolls is how many status reads report busy after an erase or
	// program command.
	BusyPolls int

	selected bool
	frame    []byte
	addr     int
	page     []byte
	pageAddr int

	writeEnabled bool
	busy         int

	erases   []Erase
	programs int
	ignored  int
}

func New(size int, id uint32) *Chip {
	c := &Chip{
		mem:       make([]byte, size),
		id:        id,
		BusyPolls: 2,
	}
	for i := range c.mem {
		c.mem[i] = 0xff
	}
	return c
}

func (c *Chip) Size() int {
	return len(c.mem)
}

func (c *Chip) Select() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = true
	c.frame = c.frame[:0]
	c.page = c.page[:0]
}

// Deselect ends the current frame and commits erase and program commands.
func (c *Chip) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.selected {
		return
	}
	c.selected = false

	if len(c.frame) == 0 {
		return
	}

	switch c.frame[0] {
	case OpWriteEnable:
		if c.busy == 0 {
			c.writeEnabled = true
		}
	case OpWriteDisable:
		if c.busy == 0 {
			c.writeEnabled = false
		}
	case OpSectorErase, OpBlockErase32K, OpBlockErase:
		if len(c.frame) >= 4 {
			c.commitErase(c.frame[0])
		}
	case OpChipErase:
		c.commitErase(OpChipErase)
	case OpProgram:
		if len(c.frame) >= 4 {
			c.commitProgram()
		}
	}
}

func eraseSize(op byte, chipSize int) int {
	switch op {
	case OpSectorErase:
		return 0x1000
	case OpBlockErase32K:
		return 0x8000
	case OpBlockErase:
		return 0x10000
	}
	return chipSize
}

func (c *Chip) commitErase(op byte) {
	if c.busy > 0 || !c.writeEnabled {
		c.ignored++
		return
	}

	size := eraseSize(op, len(c.mem))
	start := c.frameAddr() &^ (size - 1)
	if op == OpChipErase {
		start = 0
	}
	for i := start; i < start+size && i < len(c.mem); i++ {
		c.mem[i] = 0xff
	}

	c.erases = append(c.erases, Erase{Opcode: op, Addr: start, Size: size})
	c.writeEnabled = false
	c.busy = c.BusyPolls
}

func (c *Chip) commitProgram() {
	if c.busy > 0 || !c.writeEnabled {
		c.ignored++
		return
	}

	/* Bytes past the end of the page wrap around to its start */
	base := c.pageAddr &^ (PageSize - 1)
	offset := c.pageAddr & (PageSize - 1)
	for _, b := range c.page {
		c.mem[(base+offset)%len(c.mem)] &= b
		offset = (offset + 1) % PageSize
	}

	c.programs++
	c.writeEnabled = false
	c.busy = c.BusyPolls
}

func (c *Chip) frameAddr() int {
	return (int(c.frame[1])<<16 | int(c.frame[2])<<8 | int(c.frame[3])) % len(c.mem)
}

func (c *Chip) status() byte {
	var s byte
	if c.busy > 0 {
		s |= StatusBusy
		c.busy--
	}
	if c.writeEnabled {
		s |= StatusWriteEnabled
	}
	return s
}

// Transfer shifts one byte in and returns the byte shifted out at the
// same time.
func (c *Chip) Transfer(in byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.selected {
		return 0xff
	}

	c.frame = append(c.frame, in)
	pos := len(c.frame) - 1
	op := c.frame[0]

	if c.busy > 0 && op != OpReadStatus {
		return 0xff
	}

	switch op {
	case OpReadStatus:
		if pos >= 1 {
			return c.status()
		}

	case OpIdentify:
		if pos >= 1 && pos <= 3 {
			return byte(c.id >> (8 * uint(3-pos)))
		}

	case OpRead, OpFastRead:
		dataStart := 4
		if op == OpFastRead {
			dataStart = 5
		}
		if pos == 3 {
			c.addr = c.frameAddr()
		}
		if pos >= dataStart {
			b := c.mem[c.addr]
			c.addr = (c.addr + 1) % len(c.mem)
			return b
		}

	case OpProgram:
		if pos == 3 {
			c.pageAddr = c.frameAddr()
		}
		if pos >= 4 {
			c.page = append(c.page, in)
			if len(c.page) > PageSize {
				c.page = c.page[len(c.page)-PageSize:]
			}
		}
	}

	return 0xff
}

// Erases returns the erase commands accepted so far.
func (c *Chip) Erases() []Erase {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Erase, len(c.erases))
	copy(out, c.erases)
	return out
}

// Programs returns the number of accepted program commands.
func (c *Chip) Programs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.programs
}

// Ignored counts erase and program commands dropped because the chip was
// busy or not write enabled.
func (c *Chip) Ignored() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ignored
}

func (c *Chip) Image() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, len(c.mem))
	copy(out, c.mem)
	return out
}

// LoadImage replaces the contents with the file at path. A missing file
// leaves the chip erased.
func (c *Chip) LoadImage(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) != len(c.mem) {
		return fmt.Errorf("image %q has %d bytes, chip has %d", path, len(data), len(c.mem))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.mem, data)
	return nil
}

func (c *Chip) SaveImage(path string) error {
	return os.WriteFile(path, c.Image(), 0644)
}
