package substore

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rzbill/rocketspeed/internal/rserrors"
)

// maxRecordBytes bounds one record's encoded size, guarding Read against a
// corrupt or truncated length prefix driving an unbounded allocation.
const maxRecordBytes = 1 << 20

// WriteSnapshot writes records to path as a sequence of length-prefixed
// msgpack records (a 4-byte big-endian length followed by that many
// bytes), truncating any existing file at path. This is the snapshot
// format the multi-shard subscriber's SaveSubscriptions call produces.
func WriteSnapshot(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range records {
		b, err := msgpack.Marshal(r)
		if err != nil {
			return err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := f.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// ReadSnapshot reads back every record written by WriteSnapshot. A missing
// file is treated as an empty snapshot (the common case on first boot),
// not an error.
func ReadSnapshot(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, rserrors.Wrap(rserrors.IOError, "substore: truncated length prefix", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > maxRecordBytes {
			return nil, rserrors.New(rserrors.IOError, "substore: record exceeds max snapshot record size")
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(f, body); err != nil {
			return nil, rserrors.Wrap(rserrors.IOError, "substore: truncated record body", err)
		}
		var r Record
		if err := msgpack.Unmarshal(body, &r); err != nil {
			return nil, rserrors.Wrap(rserrors.IOError, "substore: corrupt record", err)
		}
		out = append(out, r)
	}
	return out, nil
}
