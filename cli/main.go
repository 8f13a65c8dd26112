package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BertoldVdb/spiflash-tools/boards"
	"github.com/BertoldVdb/spiflash-tools/sfhal"
	"github.com/alecthomas/kong"
	"github.com/fatih/color"
)

type Context struct {
	transport sfhal.Transport
	hal       *sfhal.HAL
}

var CLI struct {
	Backend  string `optional enum:"port,hid,sim,ftdi" default:"port" help:"How to reach the SPI controller (port,hid,sim,ftdi)."`
	Board    string `optional default:"rev-b" help:"Board preset or JSON layout file."`
	PortBase int    `optional type:"hex" default:"fc00" help:"Base address of the SPI controller registers."`
	SimImage string `optional help:"Flash image used and updated by the sim backend."`

	PCIEnable bool   `optional name:"pci-enable" help:"Enable the controller's I/O decode in PCI config space before using the port backend."`
	PCIConfig string `optional name:"pci-config" default:"/sys/bus/pci/devices/0000:00:00.0/config" help:"PCI config space file of the host bridge."`

	VID      int    `optional type:"hex" help:"The USB Vendor ID, required by the hid backend unless --raw-path is given."`
	PID      int    `optional type:"hex" help:"The USB Product ID (also selects the FTDI device)."`
	Serial   string `optional help:"The USB Serial."`
	RawPath  string `optional help:"The USB Device Path."`
	Clock    int    `optional type:"int" default:"10000000" help:"SPI clock in Hz for the ftdi backend."`
	LogLevel int    `optional help:"Higher values give more output."`

	PollLimit  int           `optional type:"int" help:"Maximum number of status polls before giving up."`
	RetryDelay time.Duration `optional default:"20ms" help:"Delay between attempts while the flash is busy with another operation."`

	ListDev ListHIDCmd `cmd help:"List devices."`

	ID          IDCmd             `cmd name:"id" help:"Show flash identification and board profile."`
	ListRegions MEMIOListRegions  `cmd help:"List available memory regions."`
	Read        MEMIOReadCmd      `cmd help:"Read and dump memory."`
	Write       MEMIOWriteCmd     `cmd help:"Write value to memory (erases the sector first)."`
	WriteFile   MEMIOWriteFileCmd `cmd help:"Write file to memory."`
	Status      StatusCmd         `cmd help:"Show or reset the transfer counter of a partition."`
	Raw         RawCmd            `cmd help:"Send raw bytes to the flash and read the answer."`
}

func logFunc(level int, format string, param ...interface{}) {
	if level > CLI.LogLevel {
		return
	}
	str := fmt.Sprintf(format, param...)
	if level == 0 {
		color.Yellow("HAL(%d): %s", level, str)
		return
	}
	fmt.Printf("HAL(%d): %s\n", level, str)
}

func main() {
	k, err := kong.New(&CLI,
		kong.NamedMapper("int", intMapper{}),
		kong.NamedMapper("hex", intMapper{base: 16}))
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, err := k.Parse(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		return
	}

	hidInit()
	defer hidExit()

	c := &Context{}
	closer := func() error { return nil }
	if ctx.Command() != "list-dev" {
		profile, err := boards.Load(CLI.Board)
		if err != nil {
			fmt.Println("Failed to load board", err)
			return
		}

		var t sfhal.Transport
		t, closer, err = openTransport(profile)
		if err != nil {
			fmt.Println("Failed to open device", err)
			return
		}

		c.transport = t
		c.hal, err = sfhal.New(t, sfhal.HALConfig{
			Profile:    profile,
			RetryDelay: CLI.RetryDelay,
			LogFunc:    logFunc,
		})
		if err != nil {
			fmt.Println("Failed to create HAL", err)
			closer()
			return
		}
	}

	err = ctx.Run(c)

	/* The sim backend saves its image here, so close before exiting. */
	if cerr := closer(); cerr != nil {
		fmt.Println("Failed to close device", cerr)
	}
	ctx.FatalIfErrorf(err)
}
