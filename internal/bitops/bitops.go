// Package bitops provides the bit-mask arithmetic shared by the bit cursor
// and BitField. This is not a replacement for math/bits.
package bitops

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// SetValue stores "val" in unsigned number "store" starting at bit "start" and
// ending at bit "end" (exclusive). If start >= end, this panics.
// This clears the existing bits in the range before setting the new value.
func SetValue[I, U constraints.Unsigned](val I, store U, start, end uint64) U {
	if start >= end {
		panic("start cannot be >= end")
	}

	store = ClearBits(store, uint8(start), uint8(end))
	c := U(val) << start

	return store | c
}

// GetValue retrieves a value stored with SetValue. store is the unsigned number
// holding the value, bitMask is the mask used to extract it, and start is the
// bit position the value begins at.
func GetValue[U, U1 constraints.Unsigned](store U, bitMask U, start uint64) U1 {
	return U1((store & bitMask) >> start)
}

// GetBit gets a single bit value from "store" in position "pos". true if set, false if not.
func GetBit[U constraints.Unsigned](store U, pos uint8) bool {
	checkWidth(store, pos)
	return store&(1<<pos) != 0
}

// SetBit sets a single bit in "store" at position "pos" to val.
func SetBit[U constraints.Unsigned](store U, pos uint8, val bool) U {
	checkWidth(store, pos)
	if val {
		return store | (1 << pos)
	}
	return store &^ (1 << pos)
}

// ClearBit clears the bit at pos in store.
func ClearBit[U constraints.Unsigned](store U, pos uint8) U {
	store &^= 1 << pos
	return store
}

// ClearBits clears all bits from "from" (inclusive) until "to" (exclusive).
func ClearBits[U constraints.Unsigned](store U, from, to uint8) U {
	if from >= to {
		return store
	}

	width := to - from

	var m uint64
	if width == 64 {
		m = ^uint64(0)
	} else {
		m = (uint64(1)<<width - 1) << from
	}

	return store &^ U(m)
}

// Mask creates a mask for setting, getting and clearing a set of bits.
// start is the bit location to start at and end is the bit to end at (exclusive).
// Index starts at 0, so Mask(1, 4) covers bits at location 1 to 3.
func Mask[U constraints.Unsigned](start, end uint64) U {
	if start >= end {
		panic("start cannot be >= end")
	}
	width := end - start
	var m uint64
	if width == 64 {
		m = ^uint64(0)
	} else {
		m = (uint64(1)<<width - 1) << start
	}
	return U(m)
}

func checkWidth[U constraints.Unsigned](store U, pos uint8) {
	switch any(store).(type) {
	case uint8:
		if pos > 7 {
			panic(fmt.Sprintf("can't address bit position %d in a uint8", pos))
		}
	case uint16:
		if pos > 15 {
			panic(fmt.Sprintf("can't address bit position %d in a uint16", pos))
		}
	case uint32:
		if pos > 31 {
			panic(fmt.Sprintf("can't address bit position %d in a uint32", pos))
		}
	case uint64:
		if pos > 63 {
			panic(fmt.Sprintf("can't address bit position %d in a uint64", pos))
		}
	}
}

// PackMSB packs bits[0:n] (each either 0 or 1) into an unsigned integer, MSB-first:
// bits[0] becomes the highest of the n bits. Used by the bit cursor, which reads
// stream bytes MSB-first per the destructify wire convention.
func PackMSB(bits []int) uint64 {
	var v uint64
	for i, b := range bits {
		v |= uint64(b&1) << uint(len(bits)-i-1)
	}
	return v
}

// UnpackMSB splits byte b into 8 individual bits, MSB-first (bit 7 first).
func UnpackMSB(b byte) [8]int {
	var out [8]int
	for i := 0; i < 8; i++ {
		out[i] = int(b>>(7-i)) & 1
	}
	return out
}
