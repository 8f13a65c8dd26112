// Package boards holds the partition layouts of the known board revisions
// and loads user supplied layouts from JSON.
package boards

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/BertoldVdb/spiflash-tools/sfhal"
)

//go:embed *.json
var presets embed.FS

const Default = "rev-b"

// hexInt accepts plain JSON numbers as well as strings like "0x3d0000".
type hexInt int64

func (h *hexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}

	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(b))
	}
	*h = hexInt(v)
	return nil
}

type partitionJSON struct {
	Name        string `json:"name"`
	Start       hexInt `json:"start"`
	End         hexInt `json:"end"`
	EraseSize   hexInt `json:"eraseSize"`
	EraseOpcode hexInt `json:"eraseOpcode"`
	Protected   bool   `json:"protected"`
	Counted     bool   `json:"counted"`
}

type profileJSON struct {
	Name        string          `json:"name"`
	ChipSize    hexInt          `json:"chipSize"`
	ExpectedIDs []hexInt        `json:"expectedIDs"`
	FastRead    bool            `json:"fastRead"`
	Partitions  []partitionJSON `json:"partitions"`
}

func (p profileJSON) profile() (sfhal.Profile, error) {
	out := sfhal.Profile{
		Name:        p.Name,
		ChipSize:    int(p.ChipSize),
		UseFastRead: p.FastRead,
	}

	for _, id := range p.ExpectedIDs {
		if id < 0 || id > 0xffffff {
			return out, fmt.Errorf("%w: ID %x is not 24 bit", sfhal.ErrorInvalidProfile, int64(id))
		}
		out.ExpectedIDs = append(out.ExpectedIDs, uint32(id))
	}

	for _, m := range p.Partitions {
		if m.EraseOpcode < 0 || m.EraseOpcode > 0xff {
			return out, fmt.Errorf("%w: erase opcode %x of %s", sfhal.ErrorInvalidProfile, int64(m.EraseOpcode), m.Name)
		}
		out.Partitions = append(out.Partitions, sfhal.Partition{
			Name:        m.Name,
			Start:       int(m.Start),
			End:         int(m.End),
			EraseSize:   int(m.EraseSize),
			EraseOpcode: byte(m.EraseOpcode),
			Protected:   m.Protected,
			Counted:     m.Counted,
		})
	}

	/* Check the layout now so a bad file is reported when it is loaded and
	 * not when the device is opened. */
	if _, err := sfhal.NewPartitionTable(out.ChipSize, out.Partitions); err != nil {
		return out, err
	}
	return out, nil
}

// Parse decodes a profile. Unknown fields are rejected.
func Parse(data []byte) (sfhal.Profile, error) {
	var p profileJSON

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return sfhal.Profile{}, fmt.Errorf("%w: %v", sfhal.ErrorInvalidProfile, err)
	}
	return p.profile()
}

// Names lists the built in presets.
func Names() []string {
	entries, err := presets.ReadDir(".")
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Load returns the preset called name or, if there is none, reads name as
// a JSON file.
func Load(name string) (sfhal.Profile, error) {
	if name == "" {
		name = Default
	}

	data, err := presets.ReadFile(strings.ToLower(name) + ".json")
	if err != nil {
		data, err = os.ReadFile(name)
		if err != nil {
			return sfhal.Profile{}, fmt.Errorf("board %q is not one of %v and could not be read: %w", name, Names(), err)
		}
	}

	profile, err := Parse(data)
	if err != nil {
		return profile, fmt.Errorf("board %s: %w", name, err)
	}
	return profile, nil
}
