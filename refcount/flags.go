package refcount

import (
	"fmt"
	"math/bits"
	"strings"
)

// Flags is the 32-bit word stored alongside the live count in a Counter. The two lowest bits are
// reserved by the ownership layer; bits 2 through 31 are free for consumers.
type Flags uint32

const (
	// FlagCoAllocated indicates that the counter and the value it tracks were allocated in a single
	// block, with the counter at the low address. Finalizing such a value must not release the value's
	// memory separately.
	FlagCoAllocated Flags = 1 << iota
	// FlagValid indicates that the owning handle of the tracked value is still alive
	FlagValid
)

const (
	// MaxBit is the highest bit position addressable in a Flags word
	MaxBit uint = 31
	// FirstUserBit is the lowest bit position that is not reserved by the ownership layer
	FirstUserBit uint = 2
)

var flagsMapping = map[Flags]string{
	FlagCoAllocated: "FlagCoAllocated",
	FlagValid:       "FlagValid",
}

// Has returns true if every bit set in other is also set in f
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	if f == 0 {
		return "None"
	}

	var sb strings.Builder
	remaining := f
	for remaining != 0 {
		bit := Flags(1) << bits.TrailingZeros32(uint32(remaining))
		remaining &^= bit

		if sb.Len() > 0 {
			sb.WriteByte('|')
		}

		name, known := flagsMapping[bit]
		if !known {
			name = fmt.Sprintf("Bit%d", bits.TrailingZeros32(uint32(bit)))
		}
		sb.WriteString(name)
	}

	return sb.String()
}
