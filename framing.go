package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errFraming marks any failure in decoding the wire grammar (a short read
// that hits EOF, or a malformed length prefix). The incoming-message loop
// treats it identically to an I/O error: both are a premature exit (§4.6).
var errFraming = errors.New("transport: framing error")

// maxFrameLength bounds a single length-prefixed payload so a corrupt or
// hostile peer cannot make recvWithLength allocate an unbounded buffer.
const maxFrameLength = 64 << 20 // 64 MiB

// recvInt32 reads one big-endian, 4-byte signed integer, blocking until all
// four bytes arrive. A clean peer shutdown before any bytes are read, or a
// truncated shutdown mid-integer, both fold into errFraming.
func recvInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", errFraming, err)
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// recvWithLength reads an int32 byte count n >= 0 followed by exactly n
// bytes, accumulating short reads until the payload is complete.
func recvWithLength(r io.Reader) ([]byte, error) {
	n, err := recvInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxFrameLength {
		return nil, fmt.Errorf("%w: implausible length %d", errFraming, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errFraming, err)
	}
	return payload, nil
}

// encodeInt32 renders v as 4 big-endian bytes.
func encodeInt32(v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return buf[:]
}

// encodeWithLength prefixes payload with its int32 length.
func encodeWithLength(payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

// sendMany writes every chunk to w as a single ordered Write call, so that
// no other goroutine's frame can interleave with this one's bytes
// (INV-SEND-EXCLUSIVE combines with the caller holding the remote's mutex
// to guarantee this). Chunks are typically the output of encodeInt32 and
// encodeWithLength.
func sendMany(w io.Writer, chunks ...[]byte) error {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	buf := bytes.NewBuffer(make([]byte, 0, total))
	for _, c := range chunks {
		buf.Write(c)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// flatten concatenates a vector of message chunks into the single blob
// this wire format transmits (spec.md §4.1: senders write one int32
// total-length followed by concatenated chunk bytes).
func flatten(chunks [][]byte) []byte {
	if len(chunks) == 1 {
		return chunks[0]
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
