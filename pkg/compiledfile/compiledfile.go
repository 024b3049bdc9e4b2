// Package compiledfile reads and writes the on-disk form of a method: a
// three-line text header followed by a binary body.
//
//	!TIER1
//	1
//	<hex BLAKE2b-256 of the body>
//	<body>
//
// The body holds the method name, its metadata and the raw bytecode, encoded
// with the serializer package.
package compiledfile

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"tier1/pkg/method"
	"tier1/pkg/serializer"
)

const (
	Magic   = "!TIER1"
	Version = 1
)

// File is a loaded compiled file whose body has not been decoded yet.
type File struct {
	Magic   string
	Version uint64
	Sum     string
	Body    []byte
}

// Load reads the header and the whole body from r.
func Load(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	var header [3]string
	for i := range header {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header line %d: %w", i+1, err)
		}
		header[i] = strings.TrimSuffix(line, "\n")
	}

	ver, err := strconv.ParseUint(header[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad version %q: %w", header[1], err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &File{Magic: header[0], Version: ver, Sum: header[2], Body: body}, nil
}

// Check reports whether the header matches this format and the body matches
// its checksum.
func (f *File) Check() error {
	if f.Magic != Magic {
		return fmt.Errorf("bad magic %q", f.Magic)
	}
	if f.Version != Version {
		return fmt.Errorf("unsupported version %d", f.Version)
	}
	sum := blake2b.Sum256(f.Body)
	if got := hex.EncodeToString(sum[:]); got != f.Sum {
		return fmt.Errorf("checksum mismatch: header %s, body %s", f.Sum, got)
	}
	return nil
}

// Method checks the file and decodes its body.
func (f *File) Method() (*method.Method, error) {
	if err := f.Check(); err != nil {
		return nil, err
	}
	r := serializer.NewReader(f.Body)
	m := &method.Method{
		Name:         r.Text(),
		RequiredArgs: r.Int("required args", method.MaxCount),
		Locals:       r.Int("locals", method.MaxCount),
		StackDepth:   r.Int("stack depth", method.MaxCount),
		Bytecode:     r.Words(),
	}
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return m, nil
}

// Encode returns the body for m.
func Encode(m *method.Method) []byte {
	var w serializer.Writer
	w.Text(m.Name)
	w.Natural(uint64(m.RequiredArgs))
	w.Natural(uint64(m.Locals))
	w.Natural(uint64(m.StackDepth))
	w.Words(m.Bytecode)
	return w.Bytes()
}

// Write writes m as a compiled file.
func Write(w io.Writer, m *method.Method) error {
	if m.RequiredArgs < 0 || m.Locals < 0 || m.StackDepth < 0 {
		return fmt.Errorf("method %s: negative metadata", m.Name)
	}
	body := Encode(m)
	sum := blake2b.Sum256(body)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%d\n%s\n", Magic, Version, hex.EncodeToString(sum[:]))
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}
