package shared

import (
	"encoding/binary"
	"hash/fnv"
)

// SequenceLockKey derives the advisory lock key serializing number assignment
// for one (invoicer, year, sequence-class) bucket.
func SequenceLockKey(invoicerID int64, year, class int) int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range []uint64{uint64(invoicerID), uint64(year), uint64(class)} {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return int64(h.Sum64())
}
