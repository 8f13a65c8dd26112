package main

import (
	"fmt"
)

type StatusCmd struct {
	Region string `arg name:"region" help:"Partition to query." default:"config" optional`
	Reset  bool   `optional help:"Reset the counter after printing it."`
}

func (s *StatusCmd) Run(c *Context) error {
	region, err := c.hal.Region(s.Region)
	if err != nil {
		return err
	}

	value, err := region.Status()
	if err != nil {
		return fmt.Errorf("%s has no counter: %w", region.GetName(), err)
	}
	fmt.Printf("%s: %d bytes transferred\n", region.GetName(), value)

	if s.Reset {
		if err := region.ResetStatus(); err != nil {
			return err
		}
		fmt.Println("Counter reset.")
	}
	return nil
}
