package main

import (
	"encoding/hex"
	"fmt"
)

type RawCmd struct {
	Data string `arg name:"value" help:"Bytes to send, in hex."`
	Read int    `arg name:"read" help:"Number of bytes to read after sending." optional default:"0" type:"int"`
}

func (w RawCmd) Run(c *Context) (err error) {
	buf, err := hex.DecodeString(w.Data)
	if err != nil {
		return err
	}

	t := c.transport
	if err := t.Enter(); err != nil {
		return err
	}
	defer func() {
		if exitErr := t.Exit(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	if err := t.WaitIdle(); err != nil {
		return err
	}
	if err := t.Select(); err != nil {
		return err
	}
	for _, b := range buf {
		if err := t.WriteByte(b); err != nil {
			return err
		}
		if err := t.Drain(); err != nil {
			return err
		}
	}

	out := make([]byte, w.Read)
	for i := range out {
		if out[i], err = t.ReadByte(); err != nil {
			return err
		}
	}
	if err := t.Deselect(); err != nil {
		return err
	}

	fmt.Println("Raw command results:", hex.EncodeToString(buf), "->", hex.EncodeToString(out))
	return nil
}
