package sfhal

import (
	"fmt"
	"strings"
)

// Partition is one named range [Start, End) of the chip.
type Partition struct {
	Name  string
	Start int
	End   int

	// EraseSize is the erase granularity inside this partition. Writes must
	// start on a multiple of it and every touched unit is erased first.
	EraseSize   int
	EraseOpcode byte

	// Protected partitions (the boot loader) are never written.
	Protected bool

	// Counted partitions keep a cumulative bytes transferred counter.
	Counted bool
}

func (p Partition) Length() int {
	return p.End - p.Start
}

func (p Partition) Contains(addr int) bool {
	return addr >= p.Start && addr < p.End
}

// Profile describes one board revision.
type Profile struct {
	Name        string
	ChipSize    int
	ExpectedIDs []uint32
	UseFastRead bool
	Partitions  []Partition
}

func eraseOpcodeFor(size int) (byte, bool) {
	switch size {
	case 0x1000:
		return cmdSectorErase, true
	case 0x8000:
		return cmdBlockErase32K, true
	case 0x10000:
		return cmdBlockErase, true
	}
	return 0, false
}

type PartitionTable struct {
	chipSize   int
	partitions []Partition
}

// NewPartitionTable checks that the partitions tile [0, chipSize) in order
// and that every partition is aligned to its own erase size.
func NewPartitionTable(chipSize int, partitions []Partition) (*PartitionTable, error) {
	if chipSize <= 0 || chipSize > 1<<24 {
		return nil, fmt.Errorf("%w: chip size 0x%x does not fit 24-bit addressing", ErrorInvalidProfile, chipSize)
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("%w: no partitions", ErrorInvalidProfile)
	}

	t := &PartitionTable{
		chipSize:   chipSize,
		partitions: make([]Partition, len(partitions)),
	}
	copy(t.partitions, partitions)

	next := 0
	seen := make(map[string]bool)
	for i := range t.partitions {
		p := &t.partitions[i]
		name := strings.ToUpper(p.Name)

		if name == "" || strings.Contains(name, ".") {
			return nil, fmt.Errorf("%w: bad partition name %q", ErrorInvalidProfile, p.Name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate partition %q", ErrorInvalidProfile, p.Name)
		}
		seen[name] = true

		if p.Start != next {
			return nil, fmt.Errorf("%w: partition %s starts at 0x%06x, expected 0x%06x", ErrorInvalidProfile, p.Name, p.Start, next)
		}
		if p.End <= p.Start {
			return nil, fmt.Errorf("%w: partition %s is empty", ErrorInvalidProfile, p.Name)
		}
		if p.EraseSize <= 0 || p.EraseSize&(p.EraseSize-1) != 0 {
			return nil, fmt.Errorf("%w: partition %s erase size 0x%x is not a power of two", ErrorInvalidProfile, p.Name, p.EraseSize)
		}
		if p.Start%p.EraseSize != 0 || p.End%p.EraseSize != 0 {
			return nil, fmt.Errorf("%w: partition %s is not aligned to 0x%x", ErrorInvalidProfile, p.Name, p.EraseSize)
		}
		if p.EraseOpcode == 0 {
			op, ok := eraseOpcodeFor(p.EraseSize)
			if !ok {
				return nil, fmt.Errorf("%w: partition %s needs an erase opcode for 0x%x", ErrorInvalidProfile, p.Name, p.EraseSize)
			}
			p.EraseOpcode = op
		}

		next = p.End
	}

	if next != chipSize {
		return nil, fmt.Errorf("%w: partitions end at 0x%06x, chip is 0x%06x", ErrorInvalidProfile, next, chipSize)
	}

	return t, nil
}

func (t *PartitionTable) ChipSize() int {
	return t.chipSize
}

func (t *PartitionTable) List() []Partition {
	out := make([]Partition, len(t.partitions))
	copy(out, t.partitions)
	return out
}

func (t *PartitionTable) Locate(addr int) (Partition, bool) {
	for _, p := range t.partitions {
		if p.Contains(addr) {
			return p, true
		}
	}
	return Partition{}, false
}

func (t *PartitionTable) Get(name string) (Partition, bool) {
	for _, p := range t.partitions {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Partition{}, false
}

// CheckWrite validates a write of length bytes at addr without touching
// the hardware. It returns the owning partition.
func (t *PartitionTable) CheckWrite(addr int, length int) (Partition, error) {
	if length <= 0 {
		return Partition{}, fmt.Errorf("%w: length %d", ErrorInvalidArgument, length)
	}

	p, ok := t.Locate(addr)
	if !ok {
		return Partition{}, fmt.Errorf("%w: address 0x%06x is outside the chip", ErrorInvalidArgument, addr)
	}

	if p.Protected {
		return p, fmt.Errorf("%w: 0x%06x is inside protected partition %s", ErrorBoundary, addr, p.Name)
	}

	if addr+length > p.End {
		return p, fmt.Errorf("%w: 0x%06x + 0x%x passes the end of %s (0x%06x)", ErrorBoundary, addr, length, p.Name, p.End)
	}

	if addr%p.EraseSize != 0 {
		return p, fmt.Errorf("%w: 0x%06x in %s needs 0x%x alignment", ErrorAlignment, addr, p.Name, p.EraseSize)
	}

	return p, nil
}

// CheckRead validates a read. Reads may touch any partition.
func (t *PartitionTable) CheckRead(addr int, length int) error {
	if length <= 0 || addr < 0 {
		return fmt.Errorf("%w: read 0x%x bytes at 0x%06x", ErrorInvalidArgument, length, addr)
	}
	if addr+length > t.chipSize {
		return fmt.Errorf("%w: read 0x%06x + 0x%x passes the end of the chip", ErrorBoundary, addr, length)
	}
	return nil
}

func (t *PartitionTable) maxEraseSize() int {
	max := 0
	for _, p := range t.partitions {
		if p.EraseSize > max {
			max = p.EraseSize
		}
	}
	return max
}
