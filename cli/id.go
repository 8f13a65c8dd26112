package main

import (
	"fmt"

	"github.com/fatih/color"
)

type IDCmd struct {
}

func (i *IDCmd) Run(c *Context) error {
	profile := c.hal.Profile()

	fmt.Printf("Flash ID:     %06x", c.hal.Identity())
	if c.hal.IdentityMatched() {
		fmt.Println()
	} else {
		color.Yellow(" (not expected by %s)", profile.Name)
	}
	fmt.Printf("Board:        %s\n", profile.Name)
	fmt.Printf("Chip size:    0x%06x\n", profile.ChipSize)
	fmt.Printf("Fast read:    %v\n", profile.UseFastRead)
	fmt.Printf("Max transfer: 0x%x\n", c.hal.MaxTransfer())
	fmt.Printf("State:        %s\n", c.hal.State())
	fmt.Println()

	fmt.Println("Partition    |    Start |      End |    Erase | Flags")
	for _, p := range c.hal.Partitions() {
		flags := ""
		if p.Protected {
			flags += " protected"
		}
		if p.Counted {
			flags += " counted"
		}
		fmt.Printf("%-13s| %08x | %08x | %02x %3dK |%s\n", p.Name, p.Start, p.End, p.EraseOpcode, p.EraseSize/1024, flags)
	}
	return nil
}
