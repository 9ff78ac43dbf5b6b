package mux

import (
	"encoding/binary"
	"io"

	"github.com/rzbill/rocketspeed/internal/rserrors"
)

// ProtocolVersion is the multiplexer framing version this package speaks.
// Frames carrying an unrecognized version are rejected rather than
// silently reinterpreted.
const ProtocolVersion byte = 1

// maxFrameBody bounds a single frame body to guard against a corrupt or
// hostile length prefix causing an unbounded allocation.
const maxFrameBody = 64 << 20

// WriteFrame writes the wire framing {u8 protocol_version, u32 body_length,
// body} for one multiplexed message body.
func WriteFrame(w io.Writer, body []byte) error {
	var hdr [5]byte
	hdr[0] = ProtocolVersion
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one frame, validating the protocol version and body
// length before allocating a buffer for it.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != ProtocolVersion {
		return nil, rserrors.New(rserrors.InvalidArgument, "mux: unsupported protocol version")
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > maxFrameBody {
		return nil, rserrors.New(rserrors.InvalidArgument, "mux: frame body too large")
	}
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
