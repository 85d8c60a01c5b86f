// Package link implements the CAN-frame-length helpers ISO-TP's codec
// depends on: max data length per CAN format, the DLC<->datalen table
// from ISO 11898-1 §8.4.2.4, and padding to the next valid DLC.
package link

import "errors"

// Format identifies which CAN variant a Context was configured for.
type Format uint8

const (
	Classic Format = iota
	FD
)

var ErrInvalidFormat = errors.New("isotp/link: invalid CAN format")

// datalenTable is the ISO 11898-1 DLC->datalen table, classic entries
// first (DLC 0..8 map to themselves) then the seven FD steps above 8.
var datalenTable = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// MaxDatalen returns the largest CAN payload the format allows: 8 for
// Classic, 64 for FD.
func MaxDatalen(format Format) (int, error) {
	switch format {
	case Classic:
		return 8, nil
	case FD:
		return 64, nil
	default:
		return 0, ErrInvalidFormat
	}
}

// MaxDLC returns the largest DLC value the format uses: 8 for Classic
// (DLCs 0..8 are all one-to-one with datalen), 15 for FD.
func MaxDLC(format Format) (int, error) {
	switch format {
	case Classic:
		return 8, nil
	case FD:
		return 15, nil
	default:
		return 0, ErrInvalidFormat
	}
}

// DLCToDatalen converts a DLC code (0..15) to a byte count, per the ISO
// 11898-1 table. DLCs above 8 are only meaningful for CAN-FD.
func DLCToDatalen(dlc int) (int, error) {
	if dlc < 0 || dlc > 15 {
		return 0, ErrInvalidFormat
	}
	return datalenTable[dlc], nil
}

// DatalenToDLC rounds length up to the next entry in the DLC table and
// returns its index. length must be in 0..64.
func DatalenToDLC(length int) (int, error) {
	if length < 0 || length > 64 {
		return 0, ErrInvalidFormat
	}
	for dlc, n := range datalenTable {
		if n >= length {
			return dlc, nil
		}
	}
	return 0, ErrInvalidFormat
}

// PadFrame pads buf[:length] out to the next valid DLC for format with
// fill byte 0xCC and returns the final frame length. For Classic this is
// always 8; for FD it is the least table entry >= length. buf must have
// capacity for the padded length.
func PadFrame(buf []byte, length int, format Format) (int, error) {
	max, err := MaxDatalen(format)
	if err != nil {
		return 0, err
	}
	if length < 0 || length > max {
		return 0, ErrInvalidFormat
	}
	dlc, err := DatalenToDLC(length)
	if err != nil {
		return 0, err
	}
	padded, err := DLCToDatalen(dlc)
	if err != nil {
		return 0, err
	}
	if format == Classic && padded < 8 {
		padded = 8
	}
	if len(buf) < padded {
		return 0, ErrInvalidFormat
	}
	for i := length; i < padded; i++ {
		buf[i] = 0xCC
	}
	return padded, nil
}
