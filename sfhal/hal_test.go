package sfhal

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BertoldVdb/spiflash-tools/norsim"
)

// chipTransport drives a simulated chip directly and records what it is asked to do.
type chipTransport struct {
	chip *norsim.Chip

	calls     int64
	failAfter int64

	entered    int32
	overlapped int32
	sessions   int64
}

func newChipTransport(size int, id uint32) *chipTransport {
	return &chipTransport{chip: norsim.New(size, id), failAfter: -1}
}

func (c *chipTransport) step() error {
	n := atomic.AddInt64(&c.calls, 1)
	if c.failAfter >= 0 && n > c.failAfter {
		return fmt.Errorf("fake poll: %w", ErrorTimeout)
	}
	return nil
}

func (c *chipTransport) Enter() error {
	if !atomic.CompareAndSwapInt32(&c.entered, 0, 1) {
		atomic.AddInt32(&c.overlapped, 1)
	}
	atomic.AddInt64(&c.sessions, 1)
	return c.step()
}

func (c *chipTransport) Exit() error {
	c.chip.Deselect()
	atomic.StoreInt32(&c.entered, 0)
	return nil
}

func (c *chipTransport) Select() error {
	if err := c.step(); err != nil {
		return err
	}
	c.chip.Select()
	return nil
}

func (c *chipTransport) Deselect() error {
	if err := c.step(); err != nil {
		return err
	}
	c.chip.Deselect()
	return nil
}

func (c *chipTransport) WriteByte(b byte) error {
	if err := c.step(); err != nil {
		return err
	}
	c.chip.Transfer(b)
	return nil
}

func (c *chipTransport) Drain() error {
	return c.step()
}

func (c *chipTransport) ReadByte() (byte, error) {
	if err := c.step(); err != nil {
		return 0, err
	}
	return c.chip.Transfer(0), nil
}

func (c *chipTransport) WaitIdle() error {
	if err := c.step(); err != nil {
		return err
	}
	for i := 0; i < 64; i++ {
		c.chip.Select()
		c.chip.Transfer(norsim.OpReadStatus)
		status := c.chip.Transfer(0)
		c.chip.Deselect()
		if status&norsim.StatusBusy == 0 {
			return nil
		}
	}
	return fmt.Errorf("chip busy: %w", ErrorTimeout)
}

func (c *chipTransport) callCount() int64 {
	return atomic.LoadInt64(&c.calls)
}

func revB() Profile {
	return Profile{
		Name:        "rev-b",
		ChipSize:    0x1000000,
		ExpectedIDs: []uint32{0x1f4700},
		UseFastRead: true,
		Partitions: []Partition{
			{Name: "kernel", Start: 0, End: 0xfc0000, EraseSize: 0x10000},
			{Name: "config", Start: 0xfc0000, End: 0xfe0000, EraseSize: 0x10000, Counted: true},
			{Name: "boot", Start: 0xfe0000, End: 0x1000000, EraseSize: 0x10000, Protected: true},
		},
	}
}

func revA() Profile {
	return Profile{
		Name:        "rev-a",
		ChipSize:    0x400000,
		UseFastRead: true,
		Partitions: []Partition{
			{Name: "kernel", Start: 0, End: 0x3d0000, EraseSize: 0x10000},
			{Name: "config", Start: 0x3d0000, End: 0x3e0000, EraseSize: 0x1000, Counted: true},
			{Name: "boot", Start: 0x3e0000, End: 0x400000, EraseSize: 0x10000, Protected: true},
		},
	}
}

func newTestHAL(t *testing.T, profile Profile) (*HAL, *chipTransport) {
	t.Helper()

	ct := newChipTransport(profile.ChipSize, 0x1f4700)
	h, err := New(ct, HALConfig{
		Profile:    profile,
		RetryDelay: time.Millisecond,
		LogFunc: func(level int, format string, param ...interface{}) {
			t.Logf("HAL(%d): "+format, append([]interface{}{level}, param...)...)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, ct
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i) ^ seed
	}
	return out
}

func TestNewIdentifies(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	if h.Identity() != 0x1f4700 {
		t.Errorf("identity %06x", h.Identity())
	}
	if !h.IdentityMatched() {
		t.Error("expected identity to match")
	}
	if h.State() != StateReady {
		t.Errorf("state %s after New", h.State())
	}
}

func TestIdentityMismatchIsNotFatal(t *testing.T) {
	profile := revB()
	profile.ExpectedIDs = []uint32{0xc22016}

	var warnings []string
	ct := newChipTransport(profile.ChipSize, 0x1f4700)
	h, err := New(ct, HALConfig{
		Profile: profile,
		LogFunc: func(level int, format string, param ...interface{}) {
			if level == 0 {
				warnings = append(warnings, fmt.Sprintf(format, param...))
			}
		},
	})
	if err != nil {
		t.Fatalf("New failed on unexpected ID: %v", err)
	}
	if h.IdentityMatched() {
		t.Error("mismatch not recorded")
	}
	if len(warnings) != 1 {
		t.Errorf("expected one diagnostic, got %q", warnings)
	}
}

func TestScenarioConfigWriteRead(t *testing.T) {
	h, ct := newTestHAL(t, revB())
	data := pattern(4096, 0x5a)

	n, err := h.Write(0xfc0000, data)
	if err != nil || n != len(data) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	erases := ct.chip.Erases()
	if len(erases) != 1 || erases[0].Addr != 0xfc0000 || erases[0].Size != 0x10000 || erases[0].Opcode != norsim.OpBlockErase {
		t.Fatalf("unexpected erases %+v", erases)
	}
	if ct.chip.Programs() != 16 {
		t.Errorf("expected 16 program cycles, got %d", ct.chip.Programs())
	}

	got, err := h.Read(0xfc0000, 4096)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read back differs")
	}
	if h.State() != StateReady {
		t.Errorf("state %s", h.State())
	}
}

func TestWriteValidation(t *testing.T) {
	testCases := []struct {
		desc string
		addr int
		len  int
		want error
	}{
		{"misaligned config write", 0xfc0001, 10, ErrorAlignment},
		{"boot loader", 0xfe0000, 10, ErrorBoundary},
		{"inside boot loader", 0xff1234, 1, ErrorBoundary},
		{"crossing into boot loader", 0xfd0000, 0x10001, ErrorBoundary},
		{"crossing kernel end", 0xfb0000, 0x20000, ErrorBoundary},
		{"empty", 0, 0, ErrorInvalidArgument},
		{"negative address", -0x10000, 1, ErrorInvalidArgument},
		{"past chip", 0x1000000, 1, ErrorInvalidArgument},
		{"too large", 0, 0x20000, ErrorAllocation},
	}

	for _, tc := range testCases {
		h, ct := newTestHAL(t, revB())
		before := ct.callCount()

		_, err := h.Write(tc.addr, make([]byte, tc.len))
		if !errors.Is(err, tc.want) {
			t.Errorf("Test %q: got %v, want %v", tc.desc, err, tc.want)
		}
		if calls := ct.callCount() - before; calls != 0 {
			t.Errorf("Test %q: %d transport calls before rejection", tc.desc, calls)
		}
		if len(ct.chip.Erases()) != 0 {
			t.Errorf("Test %q: erase issued", tc.desc)
		}
	}
}

func TestBootLoaderAlwaysRejected(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	for addr := 0xfe0000; addr < 0x1000000; addr += 0x3333 {
		for _, length := range []int{1, 16, 0x1000} {
			if _, err := h.Write(addr, make([]byte, length)); !errors.Is(err, ErrorBoundary) {
				t.Fatalf("write %06x+%x: got %v", addr, length, err)
			}
		}
	}
}

func TestRevASmallSectors(t *testing.T) {
	h, ct := newTestHAL(t, revA())
	data := pattern(0x1801, 3)

	if _, err := h.Write(0x3d1000, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	erases := ct.chip.Erases()
	if len(erases) != 2 {
		t.Fatalf("expected two 4K erases, got %+v", erases)
	}
	for i, e := range erases {
		if e.Opcode != norsim.OpSectorErase || e.Size != 0x1000 || e.Addr != 0x3d1000+i*0x1000 {
			t.Errorf("erase %d: %+v", i, e)
		}
	}

	got, err := h.Read(0x3d1000, len(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("read back failed: %v", err)
	}

	if _, err := h.Write(0x3d0800, data[:16]); !errors.Is(err, ErrorAlignment) {
		t.Errorf("4K alignment not enforced: %v", err)
	}
	if _, err := h.Write(0x3c1000, data[:16]); !errors.Is(err, ErrorAlignment) {
		t.Errorf("64K alignment not enforced in kernel: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	testCases := []struct {
		addr int
		len  int
	}{
		{0, 1},
		{0x10000, 255},
		{0x20000, 256},
		{0x30000, 257},
		{0x40000, 0x10000},
		{0xfd0000, 17},
	}

	for i, tc := range testCases {
		data := pattern(tc.len, byte(i))
		if _, err := h.Write(tc.addr, data); err != nil {
			t.Fatalf("write %06x: %v", tc.addr, err)
		}
		got, err := h.Read(tc.addr, tc.len)
		if err != nil {
			t.Fatalf("read %06x: %v", tc.addr, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip at %06x+%x differs", tc.addr, tc.len)
		}
	}
}

func TestRewriteErasesFirst(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	if _, err := h.Write(0x10000, bytes.Repeat([]byte{0x00}, 64)); err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte{0xa5}, 64)
	if _, err := h.Write(0x10000, data); err != nil {
		t.Fatal(err)
	}
	got, err := h.Read(0x10000, 64)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("second write not visible: %x %v", got, err)
	}
}

func TestNormalRead(t *testing.T) {
	profile := revB()
	profile.UseFastRead = false
	h, _ := newTestHAL(t, profile)

	data := pattern(300, 9)
	if _, err := h.Write(0x50000, data); err != nil {
		t.Fatal(err)
	}
	got, err := h.Read(0x50000, len(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("read without fast read failed: %v", err)
	}
}

func TestReadValidation(t *testing.T) {
	h, _ := newTestHAL(t, revB())

	if _, err := h.Read(0, 0); !errors.Is(err, ErrorInvalidArgument) {
		t.Errorf("zero length: %v", err)
	}
	if _, err := h.Read(0xffffff, 2); !errors.Is(err, ErrorBoundary) {
		t.Errorf("past end: %v", err)
	}
	if _, err := h.Read(0, 0x10001); !errors.Is(err, ErrorAllocation) {
		t.Errorf("too large: %v", err)
	}
	if _, err := h.Read(0xfe0000, 16); err != nil {
		t.Errorf("boot loader should be readable: %v", err)
	}
}

func TestTransportTimeoutSurfaces(t *testing.T) {
	h, ct := newTestHAL(t, revB())
	atomic.StoreInt64(&ct.failAfter, ct.callCount()+40)

	n, err := h.Write(0x10000, pattern(600, 1))
	if !errors.Is(err, ErrorTimeout) {
		t.Fatalf("expected timeout, got n=%d err=%v", n, err)
	}
	if h.State() != StateReady {
		t.Fatalf("state not released after failure: %s", h.State())
	}

	atomic.StoreInt64(&ct.failAfter, -1)
	if _, err := h.Read(0x10000, 16); err != nil {
		t.Fatalf("read after failure: %v", err)
	}
}

func TestConcurrentOperationsDoNotInterleave(t *testing.T) {
	h, ct := newTestHAL(t, revB())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		i := i
		addr := 0x100000 + i*0x10000
		data := pattern(700, byte(i))

		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := h.Write(addr, data); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := h.Read(addr, 64); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := atomic.LoadInt32(&ct.overlapped); n != 0 {
		t.Fatalf("%d operations overlapped on the transport", n)
	}

	for i := 0; i < 8; i++ {
		got, err := h.Read(0x100000+i*0x10000, 700)
		if err != nil || !bytes.Equal(got, pattern(700, byte(i))) {
			t.Errorf("block %d corrupted: %v", i, err)
		}
	}
}

func TestNotReadyBeforeInit(t *testing.T) {
	var token stateToken
	token.retryDelay = time.Millisecond
	if err := token.acquire(eventRead); !errors.Is(err, ErrorNotReady) {
		t.Fatalf("got %v", err)
	}
}
