package sfhal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRegionOffsets(t *testing.T) {
	h, ct := newTestHAL(t, revB())

	config, err := h.Region("config")
	if err != nil {
		t.Fatal(err)
	}

	data := pattern(100, 7)
	if _, err := config.Write(0x10000, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if erases := ct.chip.Erases(); len(erases) != 1 || erases[0].Addr != 0xfd0000 {
		t.Fatalf("write did not land at partition start + offset: %+v", erases)
	}

	got, err := config.Read(0x10000, len(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("Read: %v", err)
	}

	if _, err := config.Write(0x20000, data); !errors.Is(err, ErrorBoundary) {
		t.Errorf("offset past end: %v", err)
	}
	if _, err := config.Write(-1, data); !errors.Is(err, ErrorBoundary) {
		t.Errorf("negative offset: %v", err)
	}
	if _, err := config.Read(0x1ffff, 2); !errors.Is(err, ErrorBoundary) {
		t.Errorf("read past end: %v", err)
	}

	boot, err := h.Region("boot")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := boot.Write(0, data); !errors.Is(err, ErrorBoundary) {
		t.Errorf("boot write: %v", err)
	}

	if _, err := h.Region("nope"); !errors.Is(err, ErrorUnknownRegion) {
		t.Errorf("unknown region: %v", err)
	}
}

func TestRegionStatus(t *testing.T) {
	h, _ := newTestHAL(t, revB())
	config, _ := h.Region("config")
	kernel, _ := h.Region("kernel")

	if _, err := config.Write(0, pattern(300, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Read(0, 200); err != nil {
		t.Fatal(err)
	}
	if _, err := kernel.Read(0, 50); err != nil {
		t.Fatal(err)
	}

	n, err := config.Status()
	if err != nil || n != 500 {
		t.Fatalf("Status = %d, %v; want 500", n, err)
	}

	status := h.MemoryRegionGet("config.status")
	if status == nil {
		t.Fatal("no status region")
	}
	var raw [8]byte
	if _, err := status.Access(false, 0, raw[:]); err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint64(raw[:]) != 500 {
		t.Fatalf("status region reads %x", raw)
	}

	if err := WriteByte(status, 0, 0); err != nil {
		t.Fatal(err)
	}
	if n, _ := config.Status(); n != 0 {
		t.Fatalf("status not reset: %d", n)
	}

	if _, err := kernel.Status(); !errors.Is(err, ErrorMissingFunction) {
		t.Errorf("kernel status: %v", err)
	}
	if h.MemoryRegionGet("kernel.status") != nil {
		t.Error("uncounted partition exposes a status region")
	}
}

func TestStatusCountsOnlyOverlap(t *testing.T) {
	tests := []struct {
		name string
		addr int
	}{
		{"from kernel into config", 0xfbff00},
		{"from config into boot", 0xfdff00},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHAL(t, revB())
			config, _ := h.Region("config")
			flash := h.MemoryRegionGet(MemoryRegionFLASH)

			buf := make([]byte, 0x200)
			if n, err := flash.Access(false, tc.addr, buf); err != nil || n != len(buf) {
				t.Fatalf("Access = %d, %v", n, err)
			}
			if n, _ := config.Status(); n != 0x100 {
				t.Errorf("counter %x, want 100", n)
			}

			if _, err := h.Read(0xfb0000, 0x10000); err != nil {
				t.Fatal(err)
			}
			if n, _ := config.Status(); n != 0x100 {
				t.Errorf("read outside config changed counter to %x", n)
			}
		})
	}
}

func TestMemoryRegionCompleteIO(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	kernel := h.MemoryRegionGet("kernel")
	if kernel == nil {
		t.Fatal("no kernel region")
	}
	if kernel.GetAlignment() != 0x10000 {
		t.Errorf("alignment %x", kernel.GetAlignment())
	}

	data := pattern(0x24000, 0x11)
	n, err := kernel.Access(true, 0x20000, data)
	if err != nil || n != len(data) {
		t.Fatalf("large write: n=%x err=%v", n, err)
	}

	got := make([]byte, len(data))
	if n, err := kernel.Access(false, 0x20000, got); err != nil || n != len(data) {
		t.Fatalf("large read: n=%x err=%v", n, err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("large round trip differs")
	}

	if _, err := kernel.Access(true, 0x20001, data[:4]); !errors.Is(err, ErrorAlignment) {
		t.Errorf("misaligned region write: %v", err)
	}

	config := h.MemoryRegionGet("CONFIG")
	tail := make([]byte, 0x100)
	n, err = config.Access(false, config.GetLength()-0x10, tail)
	if err != nil || n != 0x10 {
		t.Fatalf("read at end: n=%x err=%v", n, err)
	}

	parent, offset := RecursiveGetParentAddress(config, 0x10)
	if parent.GetName() != MemoryRegionFLASH || offset != 0xfc0010 {
		t.Errorf("parent %s.%06x", parent.GetName(), offset)
	}
}

func TestMemoryRegionList(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	want := []MemoryRegionNameType{"FLASH", "KERNEL", "CONFIG", "CONFIG.STATUS", "BOOT"}
	got := h.MemoryRegionList()
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: %s, want %s", i, got[i], want[i])
		}
		if h.MemoryRegionGet(want[i]) == nil {
			t.Errorf("MemoryRegionGet(%s) = nil", want[i])
		}
	}
}
