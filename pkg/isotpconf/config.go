// Package isotpconf loads a Context's addressing mode, CAN format and
// timer defaults from an INI file, the way the teacher's pkg/od loads
// an Electronic Data Sheet with gopkg.in/ini.v1 rather than a
// hand-rolled parser.
package isotpconf

import (
	"strconv"

	"github.com/canbus-go/isotp"
	"gopkg.in/ini.v1"
)

// Config mirrors the positional parameters of isotp.NewContext, plus
// the address-extension seed, in a form that round-trips through INI.
type Config struct {
	Format        isotp.CANFormat
	Mode          isotp.AddressingMode
	FCWaitMax     uint32
	AddressExt    uint8
	Timeouts      isotp.Timeouts
}

// Load reads a session configuration from an INI file laid out as:
//
//	[isotp]
//	format = classic | fd
//	addressing = normal | normal-fixed | extended | mixed
//	fc_wait_max = 0
//	address_extension = 0
//
//	[timeouts]
//	n_as_us = 1000000
//	n_ar_us = 1000000
//	n_bs_us = 1000000
//	n_cr_us = 1000000
//
// Missing or zero timeout fields are left at zero; isotp.NewContext
// substitutes the 1,000,000µs default for those, so a caller does not
// need to repeat the default in every file.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return fromFile(file)
}

// Parse reads a session configuration from raw INI bytes.
func Parse(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	return fromFile(file)
}

func fromFile(file *ini.File) (*Config, error) {
	section := file.Section("isotp")
	cfg := &Config{}

	switch section.Key("format").MustString("classic") {
	case "fd":
		cfg.Format = isotp.FD
	default:
		cfg.Format = isotp.Classic
	}

	switch section.Key("addressing").MustString("normal") {
	case "normal-fixed":
		cfg.Mode = isotp.NormalFixed
	case "extended":
		cfg.Mode = isotp.Extended
	case "mixed":
		cfg.Mode = isotp.Mixed
	default:
		cfg.Mode = isotp.Normal
	}

	cfg.FCWaitMax = uint32(section.Key("fc_wait_max").MustInt(0))
	cfg.AddressExt = uint8(section.Key("address_extension").MustInt(0))

	timeouts := file.Section("timeouts")
	cfg.Timeouts = isotp.Timeouts{
		NAsUs: timeouts.Key("n_as_us").MustInt64(0),
		NArUs: timeouts.Key("n_ar_us").MustInt64(0),
		NBsUs: timeouts.Key("n_bs_us").MustInt64(0),
		NCrUs: timeouts.Key("n_cr_us").MustInt64(0),
	}

	return cfg, nil
}

// Save writes cfg back out in the layout Load expects.
func Save(cfg *Config, path string) error {
	file := ini.Empty()

	section, err := file.NewSection("isotp")
	if err != nil {
		return err
	}
	formatName := "classic"
	if cfg.Format == isotp.FD {
		formatName = "fd"
	}
	section.Key("format").SetValue(formatName)
	section.Key("addressing").SetValue(addressingName(cfg.Mode))
	section.Key("fc_wait_max").SetValue(strconv.FormatInt(int64(cfg.FCWaitMax), 10))
	section.Key("address_extension").SetValue(strconv.FormatInt(int64(cfg.AddressExt), 10))

	timeouts, err := file.NewSection("timeouts")
	if err != nil {
		return err
	}
	timeouts.Key("n_as_us").SetValue(strconv.FormatInt(cfg.Timeouts.NAsUs, 10))
	timeouts.Key("n_ar_us").SetValue(strconv.FormatInt(cfg.Timeouts.NArUs, 10))
	timeouts.Key("n_bs_us").SetValue(strconv.FormatInt(cfg.Timeouts.NBsUs, 10))
	timeouts.Key("n_cr_us").SetValue(strconv.FormatInt(cfg.Timeouts.NCrUs, 10))

	return file.SaveTo(path)
}

func addressingName(mode isotp.AddressingMode) string {
	switch mode {
	case isotp.NormalFixed:
		return "normal-fixed"
	case isotp.Extended:
		return "extended"
	case isotp.Mixed:
		return "mixed"
	default:
		return "normal"
	}
}
