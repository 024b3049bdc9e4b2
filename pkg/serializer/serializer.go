// Package serializer is the compact binary codec used for compiled-file
// bodies: general-natural integers, fixed-width little-endian words and
// length-prefixed sequences.
package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
)

// EncodeGeneralNatural encodes x in 1 to 9 octets. Small values take fewer
// octets; the count of leading one bits in the header is the number of
// octets that follow.
func EncodeGeneralNatural(x uint64) []byte {
	if x == 0 {
		return []byte{0x00}
	}

	// l = floor(log2(x)/7)
	l := uint((bits.Len64(x) - 1) / 7)
	if l >= 8 {
		out := make([]byte, 9)
		out[0] = 0xFF
		binary.LittleEndian.PutUint64(out[1:], x)
		return out
	}

	header := (1 << 8) - (1 << (8 - l)) + (x >> (8 * l))
	out := []byte{byte(header)}
	if l > 0 {
		remainder := x & ((uint64(1) << (8 * l)) - 1)
		out = append(out, EncodeLittleEndian(int(l), remainder)...)
	}
	return out
}

// DecodeGeneralNatural decodes a value written by EncodeGeneralNatural and
// returns the number of octets consumed.
func DecodeGeneralNatural(p []byte) (x uint64, n int, ok bool) {
	if len(p) == 0 {
		return 0, 0, false
	}

	header := p[0]
	switch header {
	case 0x00:
		return 0, 1, true
	case 0xFF:
		if len(p) < 9 {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(p[1:9]), 9, true
	}

	l := countLeadingOnes(header)
	if len(p) < 1+l {
		return 0, 0, false
	}
	base := byte(int(1<<8) - (1 << (8 - l)))
	high := uint64(header - base)
	x = high<<(8*l) | DecodeLittleEndian(p[1:1+l])
	return x, 1 + l, true
}

func countLeadingOnes(b byte) int {
	return bits.LeadingZeros8(^b)
}

// EncodeLittleEndian writes the low octets bytes of x.
func EncodeLittleEndian(octets int, x uint64) []byte {
	switch octets {
	case 4:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(x))
		return buf[:]
	case 8:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], x)
		return buf[:]
	}
	out := make([]byte, octets)
	for i := range out {
		out[i] = byte(x)
		x >>= 8
	}
	return out
}

// DecodeLittleEndian reads up to eight octets.
func DecodeLittleEndian(b []byte) uint64 {
	switch len(b) {
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	var x uint64
	for i, v := range b {
		x |= uint64(v) << (8 * i)
	}
	return x
}

// Writer accumulates an encoded body.
type Writer struct {
	buf bytes.Buffer
}

// Natural appends x as a general natural.
func (w *Writer) Natural(x uint64) {
	w.buf.Write(EncodeGeneralNatural(x))
}

// Text appends a length-prefixed string.
func (w *Writer) Text(s string) {
	w.Natural(uint64(len(s)))
	w.buf.WriteString(s)
}

// Words appends a length-prefixed sequence of machine words, each a general
// natural.
func (w *Writer) Words(ws []uintptr) {
	w.Natural(uint64(len(ws)))
	for _, x := range ws {
		w.Natural(uint64(x))
	}
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reader decodes a body written by Writer. The first error sticks; later
// reads return zero values.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Natural reads a general natural.
func (r *Reader) Natural() uint64 {
	if r.err != nil {
		return 0
	}
	x, n, ok := DecodeGeneralNatural(r.data[r.off:])
	if !ok {
		r.err = fmt.Errorf("offset %d: truncated natural", r.off)
		return 0
	}
	r.off += n
	return x
}

// Int reads a natural that must fit a non-negative int no larger than limit.
func (r *Reader) Int(what string, limit int) int {
	at := r.off
	x := r.Natural()
	if r.err == nil && x > uint64(limit) {
		r.err = fmt.Errorf("offset %d: %s %d exceeds %d", at, what, x, limit)
		return 0
	}
	return int(x)
}

// Text reads a length-prefixed string.
func (r *Reader) Text() string {
	n := r.Int("string length", len(r.data))
	if r.err != nil {
		return ""
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("offset %d: string of %d bytes runs past the end", r.off, n)
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

// Words reads a length-prefixed word sequence.
func (r *Reader) Words() []uintptr {
	// Every word takes at least one octet.
	n := r.Int("word count", len(r.data)-r.off)
	if r.err != nil {
		return nil
	}
	out := make([]uintptr, n)
	for i := range out {
		out[i] = uintptr(r.Natural())
	}
	if r.err != nil {
		return nil
	}
	return out
}

// Close reports the first decoding error, or an error if input remains.
func (r *Reader) Close() error {
	if r.err != nil {
		return r.err
	}
	if rest := len(r.data) - r.off; rest > 0 {
		return fmt.Errorf("extra %d bytes left after decoding", rest)
	}
	return nil
}
