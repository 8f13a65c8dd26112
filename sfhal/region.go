package sfhal

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
)

type MemoryRegionNameType string

const (
	MemoryRegionFLASH MemoryRegionNameType = "FLASH"

	statusSuffix = ".STATUS"
)

type MemoryRegion interface {
	GetLength() int
	Access(write bool, addr int, buf []byte) (int, error)
	GetParent() (MemoryRegion, int)
	GetName() MemoryRegionNameType
	GetAlignment() int
}

type regionCompleteIO struct {
	MemoryRegion
}

func regionWrapCompleteIO(parent MemoryRegion) MemoryRegion {
	return regionCompleteIO{
		MemoryRegion: parent,
	}
}

/* The wrapped region may accept less than asked for (one transfer at a
 * time), keep going until everything is done. */
func (m regionCompleteIO) Access(write bool, addr int, buf []byte) (int, error) {
	align := m.GetAlignment()
	if write && addr&(align-1) != 0 {
		return 0, fmt.Errorf("%w: %s offset %x needs 0x%x alignment", ErrorAlignment, m.GetName(), addr, align)
	}

	total := 0
	for len(buf) > 0 {
		n, err := m.MemoryRegion.Access(write, addr+total, buf)
		total += n
		buf = buf[n:]

		if err != nil || n == 0 {
			return total, err
		}
	}

	return total, nil
}

func WriteByte(m MemoryRegion, addr int, value byte) error {
	_, err := m.Access(true, addr, []byte{value})
	return err
}

func ReadByte(m MemoryRegion, addr int) (byte, error) {
	var buf [1]byte
	_, err := m.Access(false, addr, buf[:])
	return buf[0], err
}

func RecursiveGetParentAddress(region MemoryRegion, offset int) (MemoryRegion, int) {
	for {
		var parentOffset int
		prevRegion := region
		region, parentOffset = region.GetParent()

		offset += parentOffset

		if region == nil {
			return prevRegion, offset
		}
	}
}

type counter struct {
	bytes uint64
}

func (c *counter) add(n int) {
	atomic.AddUint64(&c.bytes, uint64(n))
}

func (c *counter) get() uint64 {
	return atomic.LoadUint64(&c.bytes)
}

func (c *counter) reset() {
	atomic.StoreUint64(&c.bytes, 0)
}

// countTransfer credits every counted partition with the part of
// [addr, addr+length) that falls inside it.
func (h *HAL) countTransfer(addr int, length int) {
	end := addr + length
	for _, p := range h.table.List() {
		c := h.counters[p.Name]
		if c == nil {
			continue
		}

		from, to := addr, end
		if from < p.Start {
			from = p.Start
		}
		if to > p.End {
			to = p.End
		}
		if to > from {
			c.add(to - from)
		}
	}
}

type chipRegion struct {
	hal *HAL
}

func (r chipRegion) GetLength() int {
	return r.hal.table.ChipSize()
}

func (r chipRegion) GetParent() (MemoryRegion, int) {
	return nil, 0
}

func (r chipRegion) GetName() MemoryRegionNameType {
	return MemoryRegionFLASH
}

func (r chipRegion) GetAlignment() int {
	return 1
}

func (r chipRegion) Access(write bool, addr int, buf []byte) (int, error) {
	if write {
		if len(buf) > r.hal.config.MaxTransfer {
			buf = buf[:r.hal.config.MaxTransfer]
		}
		return r.hal.Write(addr, buf)
	}
	return readClamped(r.hal, addr, buf, r.GetLength())
}

func readClamped(h *HAL, addr int, buf []byte, end int) (int, error) {
	if addr >= end {
		return 0, nil
	}
	if len(buf) > end-addr {
		buf = buf[:end-addr]
	}
	if len(buf) > h.config.MaxTransfer {
		buf = buf[:h.config.MaxTransfer]
	}

	data, err := h.Read(addr, len(buf))
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// Region is one partition seen through offsets relative to its start.
type Region struct {
	hal       *HAL
	partition Partition
}

func (h *HAL) Region(name string) (*Region, error) {
	p, ok := h.table.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrorUnknownRegion, name)
	}
	return &Region{hal: h, partition: p}, nil
}

func (r *Region) Partition() Partition {
	return r.partition
}

func (r *Region) GetLength() int {
	return r.partition.Length()
}

func (r *Region) GetParent() (MemoryRegion, int) {
	return chipRegion{hal: r.hal}, r.partition.Start
}

func (r *Region) GetName() MemoryRegionNameType {
	return MemoryRegionNameType(strings.ToUpper(r.partition.Name))
}

func (r *Region) GetAlignment() int {
	return r.partition.EraseSize
}

func (r *Region) checkOffset(offset int) error {
	if offset < 0 || offset >= r.partition.Length() {
		return fmt.Errorf("%w: offset %x outside %s [0, %x)", ErrorBoundary, offset, r.partition.Name, r.partition.Length())
	}
	return nil
}

func (r *Region) Read(offset int, length int) ([]byte, error) {
	if err := r.checkOffset(offset); err != nil {
		return nil, err
	}
	if offset+length > r.partition.Length() {
		return nil, fmt.Errorf("%w: read %x + %x passes the end of %s", ErrorBoundary, offset, length, r.partition.Name)
	}
	return r.hal.Read(r.partition.Start+offset, length)
}

func (r *Region) Write(offset int, data []byte) (int, error) {
	if err := r.checkOffset(offset); err != nil {
		return 0, err
	}
	return r.hal.Write(r.partition.Start+offset, data)
}

/* Writes are cut at a multiple of the erase size so the next piece starts
 * aligned again. */
func (r *Region) Access(write bool, addr int, buf []byte) (int, error) {
	if len(buf) == 0 || (!write && addr == r.partition.Length()) {
		return 0, nil
	}
	if err := r.checkOffset(addr); err != nil {
		return 0, err
	}

	if !write {
		return readClamped(r.hal, r.partition.Start+addr, buf, r.partition.End)
	}

	limit := r.hal.config.MaxTransfer / r.partition.EraseSize * r.partition.EraseSize
	if limit == 0 {
		limit = r.hal.config.MaxTransfer
	}
	if len(buf) > limit {
		buf = buf[:limit]
	}
	return r.hal.Write(r.partition.Start+addr, buf)
}

// Status returns the cumulative number of bytes read from and written to
// a counted partition.
func (r *Region) Status() (uint64, error) {
	c := r.hal.counters[r.partition.Name]
	if c == nil {
		return 0, ErrorMissingFunction
	}
	return c.get(), nil
}

func (r *Region) ResetStatus() error {
	c := r.hal.counters[r.partition.Name]
	if c == nil {
		return ErrorMissingFunction
	}
	c.reset()
	return nil
}

/* The counter as a tiny region: 8 bytes big endian, any write clears it. */
type statusRegion struct {
	region *Region
}

func (s statusRegion) GetLength() int {
	return 8
}

func (s statusRegion) GetParent() (MemoryRegion, int) {
	return nil, 0
}

func (s statusRegion) GetName() MemoryRegionNameType {
	return s.region.GetName() + statusSuffix
}

func (s statusRegion) GetAlignment() int {
	return 1
}

func (s statusRegion) Access(write bool, addr int, buf []byte) (int, error) {
	if write {
		if err := s.region.ResetStatus(); err != nil {
			return 0, err
		}
		return len(buf), nil
	}

	value, err := s.region.Status()
	if err != nil {
		return 0, err
	}

	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], value)
	if addr >= len(tmp) {
		return 0, nil
	}
	return copy(buf, tmp[addr:]), nil
}

func (h *HAL) MemoryRegionList() []MemoryRegionNameType {
	list := []MemoryRegionNameType{MemoryRegionFLASH}
	for _, p := range h.table.List() {
		name := MemoryRegionNameType(strings.ToUpper(p.Name))
		list = append(list, name)
		if p.Counted {
			list = append(list, name+statusSuffix)
		}
	}
	return list
}

// MemoryRegionGet returns nil for unknown names.
func (h *HAL) MemoryRegionGet(name MemoryRegionNameType) MemoryRegion {
	t := strings.ToUpper(string(name))

	if MemoryRegionNameType(t) == MemoryRegionFLASH {
		return regionWrapCompleteIO(chipRegion{hal: h})
	}

	if strings.HasSuffix(t, statusSuffix) {
		r, err := h.Region(strings.TrimSuffix(t, statusSuffix))
		if err != nil || !r.partition.Counted {
			return nil
		}
		return regionWrapCompleteIO(statusRegion{region: r})
	}

	r, err := h.Region(t)
	if err != nil {
		return nil
	}
	return regionWrapCompleteIO(r)
}
