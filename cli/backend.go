package main

import (
	"errors"
	"fmt"

	"github.com/BertoldVdb/spiflash-tools/norsim"
	"github.com/BertoldVdb/spiflash-tools/sfhal"
	"github.com/BertoldVdb/spiflash-tools/spibus"
	"periph.io/x/conn/v3/physic"
)

const (
	ftdiVendorID = 0x0403
	simDefaultID = 0x1f4700
)

func controllerConfig() spibus.ControllerConfig {
	return spibus.ControllerConfig{
		PollLimit: CLI.PollLimit,
		LogFunc:   logFunc,
	}
}

func openSim(profile sfhal.Profile) (sfhal.Transport, func() error, error) {
	id := uint32(simDefaultID)
	if len(profile.ExpectedIDs) > 0 {
		id = profile.ExpectedIDs[0]
	}

	chip := norsim.New(profile.ChipSize, id)
	if CLI.SimImage != "" {
		if err := chip.LoadImage(CLI.SimImage); err != nil {
			return nil, nil, err
		}
	}

	closer := func() error {
		if CLI.SimImage == "" {
			return nil
		}
		return chip.SaveImage(CLI.SimImage)
	}

	return spibus.NewController(spibus.NewSimRegisters(chip), controllerConfig()), closer, nil
}

func openTransport(profile sfhal.Profile) (sfhal.Transport, func() error, error) {
	switch CLI.Backend {
	case "sim":
		return openSim(profile)

	case "port":
		if CLI.PCIEnable {
			if err := spibus.EnableIODecode(CLI.PCIConfig, CLI.PortBase); err != nil {
				return nil, nil, fmt.Errorf("enable I/O decode: %w", err)
			}
		}
		regs, err := spibus.OpenPortRegisters(CLI.PortBase)
		if err != nil {
			return nil, nil, err
		}
		return spibus.NewController(regs, controllerConfig()), regs.Close, nil

	case "hid":
		if CLI.VID == 0 && CLI.RawPath == "" {
			return nil, nil, errors.New("The hid backend needs --vid or --raw-path")
		}
		dev, err := OpenDevice()
		if err != nil {
			return nil, nil, err
		}
		regs := spibus.NewHIDRegisters(dev, CLI.PortBase, logFunc)
		return spibus.NewController(regs, controllerConfig()), dev.Close, nil

	case "ftdi":
		ft, err := spibus.OpenFT232H(ftdiVendorID, uint16(CLI.PID), physic.Frequency(CLI.Clock)*physic.Hertz, controllerConfig())
		if err != nil {
			return nil, nil, err
		}
		return ft, ft.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown backend %q", CLI.Backend)
}
