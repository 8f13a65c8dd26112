package sfhal

import (
	"fmt"
	"sync"
	"time"
)

type HAL struct {
	transport Transport
	table     *PartitionTable
	state     stateToken

	identity        uint32
	identityMatched bool

	config  HALConfig
	scratch sync.Pool

	counters map[string]*counter
}

type LogFunc func(level int, format string, param ...interface{})

type HALConfig struct {
	Profile Profile

	// RetryDelay is how long a caller sleeps before looking at the state
	// token again while another operation is running.
	RetryDelay time.Duration

	// MaxTransfer bounds one Read or Write call. Defaults to the largest
	// erase size of the profile.
	MaxTransfer int

	LogFunc LogFunc
}

const defaultRetryDelay = 20 * time.Millisecond

func New(t Transport, config HALConfig) (*HAL, error) {
	table, err := NewPartitionTable(config.Profile.ChipSize, config.Profile.Partitions)
	if err != nil {
		return nil, err
	}

	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultRetryDelay
	}
	if config.MaxTransfer <= 0 {
		config.MaxTransfer = table.maxEraseSize()
	}

	h := &HAL{
		transport: t,
		table:     table,
		config:    config,
		counters:  make(map[string]*counter),
	}
	h.state.retryDelay = config.RetryDelay
	h.scratch.New = func() interface{} {
		buf := make([]byte, h.config.MaxTransfer)
		return &buf
	}

	for _, p := range table.List() {
		if p.Counted {
			h.counters[p.Name] = &counter{}
		}
	}

	if err := h.identify(); err != nil {
		return nil, fmt.Errorf("identify flash: %w", err)
	}

	h.log(1, "Flash ID: %06x", h.identity)
	if len(config.Profile.ExpectedIDs) > 0 && !h.identityMatched {
		h.log(0, "Flash ID %06x is not one of the IDs expected by profile %s, continuing anyway", h.identity, config.Profile.Name)
	}

	if err := h.state.init(); err != nil {
		return nil, err
	}

	h.log(1, "Using profile %s: %d partitions, chip size 0x%06x", config.Profile.Name, len(config.Profile.Partitions), table.ChipSize())
	return h, nil
}

func (h *HAL) log(level int, format string, param ...interface{}) {
	if h.config.LogFunc != nil {
		h.config.LogFunc(level, format, param...)
	}
}

// Identity is the JEDEC ID read at start up. It is only informative.
func (h *HAL) Identity() uint32 {
	return h.identity
}

// IdentityMatched reports whether the ID matched one of the expected IDs of
// the profile. A profile without expected IDs matches everything.
func (h *HAL) IdentityMatched() bool {
	return h.identityMatched
}

func (h *HAL) State() State {
	return h.state.get()
}

func (h *HAL) Partitions() []Partition {
	return h.table.List()
}

func (h *HAL) Profile() Profile {
	return h.config.Profile
}

func (h *HAL) MaxTransfer() int {
	return h.config.MaxTransfer
}

func (h *HAL) release() {
	if err := h.state.release(); err != nil {
		h.log(0, "Forced flash state back to ready: %v", err)
	}
}

/* Scratch buffers are owned by one call and handed back on every exit path. */
func (h *HAL) scratchGet(length int) (*[]byte, error) {
	if length > h.config.MaxTransfer {
		return nil, fmt.Errorf("%w: 0x%x bytes requested, limit is 0x%x", ErrorAllocation, length, h.config.MaxTransfer)
	}

	buf, ok := h.scratch.Get().(*[]byte)
	if !ok || buf == nil || cap(*buf) < length {
		return nil, ErrorAllocation
	}
	return buf, nil
}

func (h *HAL) scratchPut(buf *[]byte) {
	h.scratch.Put(buf)
}
