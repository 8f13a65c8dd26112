package main

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
)

type intMapper struct {
	base int
}

func (h intMapper) Decode(ctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := ctx.Scan.PopValueInto("int", &value)
	if err != nil {
		return err
	}

	base := h.base
	if base == 16 {
		value = strings.TrimPrefix(strings.ToLower(value), "0x")
	}

	i, err := strconv.ParseInt(value, base, 64)
	if err != nil {
		return err
	}
	target.SetInt(i)
	return nil
}
