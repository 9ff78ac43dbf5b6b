package logstore

import "encoding/binary"

// Keyspace layout (byte-wise, lexicographically sortable):
//   log/{log_id_be8}/m              -- metadata (last seqno)
//   log/{log_id_be8}/e/{seqno_be8}  -- one entry

var (
	logPrefix = []byte("log/")
	entrySeg  = []byte("/e/")
	metaSeg   = []byte("/m")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func keyMeta(logID uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+8+len(metaSeg))
	k = append(k, logPrefix...)
	k = appendBE8(k, logID)
	k = append(k, metaSeg...)
	return k
}

func keyEntry(logID, seqno uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+8+len(entrySeg)+8)
	k = append(k, logPrefix...)
	k = appendBE8(k, logID)
	k = append(k, entrySeg...)
	k = appendBE8(k, seqno)
	return k
}

func entryLowBound(logID uint64) []byte { return keyEntry(logID, 0) }
func entryHighBound(logID uint64) []byte {
	k := keyEntry(logID, ^uint64(0))
	return append(k, 0x00)
}

func seqnoFromEntryKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(k)-8:])
}
