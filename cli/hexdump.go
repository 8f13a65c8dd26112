package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const hexdumpRow = 32

// hexdump formats data in rows of 32 bytes. Bytes with mark set are shown
// in red.
func hexdump(offset int, data []byte, mark []bool) string {
	var result strings.Builder
	red := color.New(color.FgRed, color.Bold)

	for len(data) > 0 {
		l := len(data)
		if l > hexdumpRow {
			l = hexdumpRow
		}
		work := data[:l]
		data = data[l:]
		var workMark []bool
		if len(mark) >= l {
			workMark = mark[:l]
			mark = mark[l:]
		} else {
			mark = nil
		}

		var workHex, workASCII strings.Builder
		for i := 0; i < hexdumpRow; i++ {
			if i >= len(work) {
				workHex.WriteString("   ")
				workASCII.WriteByte(' ')
			} else {
				m := work[i]
				p := byte('.')
				if m >= 32 && m <= 126 {
					p = m
				}

				if workMark != nil && workMark[i] {
					red.Fprintf(&workHex, "%02x ", m)
					red.Fprintf(&workASCII, "%c", p)
				} else {
					fmt.Fprintf(&workHex, "%02x ", m)
					workASCII.WriteByte(p)
				}
			}
			if i%8 == 7 {
				workHex.WriteByte(' ')
			}
		}

		fmt.Fprintf(&result, "%08x  %s|%s|\n", offset, workHex.String(), workASCII.String())
		offset += l
	}

	return result.String()
}
