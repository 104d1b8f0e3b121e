// SPDX-License-Identifier: GPL-2.0-or-later

package crc

const (
	ccittFalse = 0x1021
	cRCInitial = 0xffff
)

type Table struct {
	entries [256]uint16
}

// 16bit CRC used by XMODEM
var ccittFalseTable = makeTable(ccittFalse)

func makeTable(poly uint16) *Table {
	t := &Table{}
	width := uint16(16)
	for i := uint16(0); i < 256; i++ {
		crc := i << (width - 8)
		for j := 0; j < 8; j++ {
			if crc&(1<<(width-1)) != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t.entries[i] = crc
	}
	return t
}

func update(crc uint16, p []byte) uint16 {
	for _, v := range p {
		crc = ccittFalseTable.entries[byte(crc>>8)^v] ^ (crc << 8)
	}
	return crc
}

// Update returns the CRC-16/CCITT-FALSE of p.
func Update(p []byte) uint16 {
	return update(cRCInitial, p)
}

// Digest accumulates a CRC over everything written to it.
type Digest struct {
	crc     uint16
	started bool
}

func (d *Digest) Write(p []byte) (int, error) {
	if !d.started {
		d.crc = cRCInitial
		d.started = true
	}
	d.crc = update(d.crc, p)
	return len(p), nil
}

// Sum16 returns the CRC of all bytes written so far.
func (d *Digest) Sum16() uint16 {
	if !d.started {
		return cRCInitial
	}
	return d.crc
}
