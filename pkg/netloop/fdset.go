package netloop

import "golang.org/x/sys/unix"

// fdBits is the width of one unix.FdSet word on the platforms this server
// targets (Linux and the other 64-bit unix.FdSet layouts exposed by
// golang.org/x/sys/unix). FD_SETSIZE-equivalent bookkeeping in this package
// assumes a 64-bit word, matching the FdSet.Bits element type.
const fdBits = 64

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdBits] |= 1 << (uint(fd) % fdBits)
}

func fdClr(set *unix.FdSet, fd int) {
	set.Bits[fd/fdBits] &^= 1 << (uint(fd) % fdBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdBits]&(1<<(uint(fd)%fdBits)) != 0
}
