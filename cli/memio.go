package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/BertoldVdb/spiflash-tools/sfhal"
	"github.com/inancgumus/screen"
	"github.com/sigurn/crc16"
)

var crcTab = crc16.MakeTable(crc16.CRC16_XMODEM)

type MEMIOListRegions struct {
}

func (l *MEMIOListRegions) Run(c *Context) error {
	var regions []sfhal.MemoryRegion
	for _, m := range c.hal.MemoryRegionList() {
		regions = append(regions, c.hal.MemoryRegionGet(m))
	}

	fmt.Printf("Region         |     Length |  Align | Parent (%s)\n", c.hal.Profile().Name)

	for _, m := range regions {
		parent, offset := sfhal.RecursiveGetParentAddress(m, 0)
		fmt.Printf("%-15s| %10d | %6x |", m.GetName(), m.GetLength(), m.GetAlignment())
		if parent != nil && parent.GetName() != m.GetName() {
			fmt.Printf(" %s.%06X", parent.GetName(), offset)
		}
		fmt.Printf("\n")
	}
	return nil
}

type Region struct {
	Region string `arg name:"region" help:"Memory region to access."`
	Addr   int    `arg name:"addr" help:"Addresses to access." type:"int"`
}

func (r Region) get(c *Context) (sfhal.MemoryRegion, error) {
	region := c.hal.MemoryRegionGet(sfhal.MemoryRegionNameType(r.Region))
	if region == nil {
		return nil, fmt.Errorf("%w: %s", sfhal.ErrorUnknownRegion, r.Region)
	}
	return region, nil
}

type MEMIOReadCmd struct {
	Loop     int    `optional help:"0=Perform once, 1=Mark changes since start, 2=Mark changes since previous iteration."`
	Filename string `optional help:"File to write dump to."`

	Region Region `embed`
	Amount int    `arg name:"amount" help:"Number of bytes to read, omit for maximum." optional default:"0" type:"int"`
}

func (l *MEMIOReadCmd) Run(c *Context) error {
	if l.Loop < 0 || l.Loop > 2 {
		return errors.New("Loop flag out of range")
	}

	region, err := l.Region.get(c)
	if err != nil {
		return err
	}

	if l.Amount == 0 {
		l.Amount = region.GetLength() - l.Region.Addr
	}
	if l.Amount <= 0 {
		return sfhal.ErrorBoundary
	}

	var oldBuf []byte
	var mark []bool
	for {
		startTime := time.Now()
		if l.Loop == 2 || mark == nil {
			mark = make([]bool, l.Amount)
		}

		buf := make([]byte, l.Amount)
		n, err := region.Access(false, l.Region.Addr, buf)
		if err != nil {
			return fmt.Errorf("Read error: %w", err)
		}
		buf = buf[:n]

		if l.Filename != "" {
			if err := ioutil.WriteFile(l.Filename, buf, 0644); err != nil {
				return err
			}
			fmt.Printf("Read %d bytes from %s:%06x, CRC16 %04x.\n", n, region.GetName(), l.Region.Addr, crc16.Checksum(buf, crcTab))
			return nil
		}

		if l.Amount == 1 {
			if len(buf) < 1 {
				return errors.New("0 bytes returned")
			}
			fmt.Printf("0x%02x\n", buf[0])
		} else {
			if l.Loop != 0 {
				screen.Clear()
				screen.MoveTopLeft()
				if oldBuf != nil {
					for i, m := range oldBuf {
						if i < len(buf) && m != buf[i] {
							mark[i] = true
						}
					}
				}
			}
			fmt.Println(hexdump(l.Region.Addr, buf, mark))
		}

		oldBuf = buf

		if l.Loop == 0 {
			break
		}
		d := time.Now().Sub(startTime)
		td := 200 * time.Millisecond
		if d < td {
			time.Sleep(td - d)
		}
	}

	return nil
}

type MEMIOWriteCmd struct {
	Zone  Region `embed`
	Value int    `arg name:"value" help:"Value to write." type:"int"`
}

func (w MEMIOWriteCmd) Run(c *Context) error {
	region, err := w.Zone.get(c)
	if err != nil {
		return err
	}

	return sfhal.WriteByte(region, w.Zone.Addr, byte(w.Value))
}

type MEMIOWriteFileCmd struct {
	Region   Region `embed`
	Filename string `arg name:"filename" help:"File to read data from."`

	Verify bool `optional name:"verify" help:"Read and verify written file."`
}

func (w MEMIOWriteFileCmd) Run(c *Context) error {
	data, err := ioutil.ReadFile(w.Filename)
	if err != nil {
		return err
	}

	region, err := w.Region.get(c)
	if err != nil {
		return err
	}

	n, err := region.Access(true, w.Region.Addr, data)
	if n > 0 {
		fmt.Printf("Wrote %d bytes to %s:%06x, CRC16 %04x.\n", n, region.GetName(), w.Region.Addr, crc16.Checksum(data[:n], crcTab))
	}
	if err != nil {
		return err
	}

	if w.Verify {
		readback := make([]byte, len(data))
		_, err := region.Access(false, w.Region.Addr, readback)
		if err != nil {
			return err
		}

		if !bytes.Equal(readback, data) {
			first, mark := diffRow(readback, data)
			fmt.Print(hexdump(w.Region.Addr+first, readback[first:first+len(mark)], mark))
			return errors.New("Failed to verify write")
		}

		fmt.Println("Verification OK.")
	}

	return nil
}

/* Returns the start of the first 32 byte row that differs and the marks
 * for up to four rows from there. */
func diffRow(got []byte, want []byte) (int, []bool) {
	first := 0
	for first < len(got) && got[first] == want[first] {
		first++
	}
	first &^= 31

	end := first + 4*32
	if end > len(got) {
		end = len(got)
	}

	mark := make([]bool, end-first)
	for i := first; i < end; i++ {
		mark[i-first] = got[i] != want[i]
	}
	return first, mark
}
