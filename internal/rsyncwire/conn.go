// Package rsyncwire implements the duplex channel of §4.D: a framed,
// buffered, auto-flushing bidirectional byte stream carrying both
// application data and multiplexed out-of-band messages.
package rsyncwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/colinmarc/rsyncsend"
)

// ErrChannelEOF is returned when the peer closed the connection before
// the requested number of bytes arrived (§4.D "Failure modes").
var ErrChannelEOF = errors.New("rsyncwire: channel closed before requested bytes arrived")

// ErrChannelIO wraps an underlying transport failure (§4.D "Failure
// modes"). Both are fatal to the owning driver.
var ErrChannelIO = errors.New("rsyncwire: transport I/O error")

// flusher is implemented by writers that buffer bytes internally and need
// an explicit signal before a read that could otherwise deadlock waiting
// on buffered-but-unsent data (the "auto-flush on read" rule of §4.D).
// *bufio.Writer satisfies this; *MultiplexWriter has no Flush method,
// and plain io.Writer sinks have nothing to flush.
type flusher interface {
	Flush() error
}

// Conn is the sender/receiver's view of the duplex channel: a reader and
// a writer, each possibly already wrapping a CountingReader/CountingWriter
// and, on the write side, a *MultiplexWriter once the connection has
// switched to multiplexed mode.
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

func wrapErr(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrChannelEOF, err)
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

// flush flushes the write side, if it is buffered, before the read it
// guards proceeds. This is the mechanism that prevents the classic
// request/response protocol deadlock: a get* call always ensures
// everything written so far has actually left the process first.
func (c *Conn) flush() error {
	if f, ok := c.Writer.(flusher); ok {
		if err := f.Flush(); err != nil {
			return wrapErr(err, ErrChannelIO)
		}
	}
	return nil
}

// Get reads exactly n bytes and returns them as a new slice (§4.D "raw
// put(buf, offset, len) / get(len) → view").
func (c *Conn) Get(n int) ([]byte, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.Reader, buf); err != nil {
		return nil, wrapErr(err, ErrChannelIO)
	}
	return buf, nil
}

// Put writes buf[offset : offset+length] (§4.D "raw put(buf, offset,
// len)").
func (c *Conn) Put(buf []byte, offset, length int) error {
	_, err := c.Writer.Write(buf[offset : offset+length])
	return wrapErr(err, ErrChannelIO)
}

// Write implements io.Writer so *Conn can be used directly as a sink,
// e.g. as the destination of an io.MultiWriter computing a digest while
// also putting bytes on the wire.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	return n, wrapErr(err, ErrChannelIO)
}

// ReadByte reads a single byte.
func (c *Conn) ReadByte() (byte, error) {
	b, err := c.Get(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteByte writes a single byte.
func (c *Conn) WriteByte(b byte) error {
	return c.Put([]byte{b}, 0, 1)
}

// ReadChar16 reads a 16-bit little-endian value (§4.D "16-bit little-endian
// char").
func (c *Conn) ReadChar16() (uint16, error) {
	buf, err := c.Get(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// WriteChar16 writes a 16-bit little-endian value.
func (c *Conn) WriteChar16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return c.Put(buf[:], 0, len(buf))
}

// ReadInt32 reads a 32-bit little-endian integer.
func (c *Conn) ReadInt32() (int32, error) {
	buf, err := c.Get(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// WriteInt32 writes a 32-bit little-endian integer.
func (c *Conn) WriteInt32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return c.Put(buf[:], 0, len(buf))
}

// ReadInt64 reads a 64-bit quantity using rsync's classic encoding: a
// 32-bit integer, or -1 followed by a genuine 64-bit little-endian value
// when the value does not fit in 31 bits.
func (c *Conn) ReadInt64() (int64, error) {
	v, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if v != -1 {
		return int64(v), nil
	}
	buf, err := c.Get(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

// WriteInt64 writes v using the same encoding ReadInt64 expects.
func (c *Conn) WriteInt64(v int64) error {
	if v >= 0 && v <= 0x7FFFFFFF {
		return c.WriteInt32(int32(v))
	}
	if err := c.WriteInt32(-1); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return c.Put(buf[:], 0, len(buf))
}

// ReadVarint reads a variable-length-encoded integer with the given
// minimum byte width (§4.A), via the rsync.DecodeLong codec.
func (c *Conn) ReadVarint(minBytes int) (int64, error) {
	if err := c.flush(); err != nil {
		return 0, err
	}
	return rsync.DecodeLong(&connByteReader{c: c}, minBytes)
}

// WriteVarint writes v using the rsync.EncodeLong codec.
func (c *Conn) WriteVarint(v int64, minBytes int) error {
	buf := rsync.EncodeLong(v, minBytes)
	return c.Put(buf, 0, len(buf))
}

// connByteReader reads single bytes straight from Conn's Reader,
// bypassing Get's flush, for the ReadByte interface rsync.DecodeLong
// wants, so that reading
// a multi-byte varint only flushes once (in ReadVarint above) rather than
// once per byte.
type connByteReader struct{ c *Conn }

func (r *connByteReader) ReadByte() (byte, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r.c.Reader, buf); err != nil {
		return 0, wrapErr(err, ErrChannelIO)
	}
	return buf[0], nil
}
