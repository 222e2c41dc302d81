package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Msg identifies the kind of an out-of-band frame multiplexed into the
// inbound application byte stream (§1 item 3, §4.D, §6 "Multiplexed
// frames").
type Msg byte

const (
	// MsgData tags ordinary application bytes: file-list entries, sum
	// headers, checksum pairs, and content tokens all travel as MsgData
	// frames and are transparently concatenated into the reader's
	// application stream.
	MsgData Msg = iota
	MsgErrorXfer
	MsgInfo
	MsgWarning
	MsgError
	MsgLog
	MsgIOError
	MsgNoSend
)

func (m Msg) String() string {
	switch m {
	case MsgData:
		return "DATA"
	case MsgErrorXfer:
		return "ERROR_XFER"
	case MsgInfo:
		return "INFO"
	case MsgWarning:
		return "WARNING"
	case MsgError:
		return "ERROR"
	case MsgLog:
		return "LOG"
	case MsgIOError:
		return "IO_ERROR"
	case MsgNoSend:
		return "NO_SEND"
	default:
		return fmt.Sprintf("Msg(%d)", int(m))
	}
}

// mplexBase is added to a Msg to form the wire tag, keeping low tag values
// (0..6) reserved the way upstream rsync reserves them for historical
// reasons; only relative ordering of our own Msg values matters since this
// module does not need to interoperate with tridge rsync's exact tag
// space.
const mplexBase = 7

// maxFrameLen bounds a single multiplexed frame's payload, matching the
// low 24 bits available in the 4-byte frame header.
const maxFrameLen = 1<<24 - 1

// MultiplexWriter frames every Write call as a tagged MsgData frame, and
// additionally exposes WriteMsg for out-of-band messages (info, warnings,
// errors, I/O notifications). Frames travel as a 4-byte little-endian
// header (low 3 bytes: payload length, high byte: tag) followed by the
// payload. Only the server→client direction is multiplexed (§4.D).
type MultiplexWriter struct {
	Writer io.Writer
}

func (w *MultiplexWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxFrameLen {
			chunk = chunk[:maxFrameLen]
		}
		if err := w.writeFrame(MsgData, chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// WriteMsg sends a single out-of-band frame with the given tag and
// payload, serialised with respect to application bytes (§5 "Ordering
// guarantees" item iv).
func (w *MultiplexWriter) WriteMsg(tag Msg, payload []byte) error {
	return w.writeFrame(tag, payload)
}

func (w *MultiplexWriter) writeFrame(tag Msg, payload []byte) error {
	if len(payload) > maxFrameLen {
		return fmt.Errorf("rsyncwire: frame payload too large: %d bytes", len(payload))
	}
	header := uint32(mplexBase+tag)<<24 | uint32(len(payload))
	if err := binary.Write(w.Writer, binary.LittleEndian, header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Writer.Write(payload)
	return err
}

// OOBHandler is invoked synchronously, in arrival order, for every
// non-MsgData frame MultiplexReader encounters, before the read that
// triggered the frame parse returns any bytes (§4.D, §5 item iv).
type OOBHandler func(tag Msg, payload []byte) error

// MultiplexReader demultiplexes MsgData frames into a flat byte stream,
// dispatching every other tag to Handler as it is encountered. If Handler
// is nil, OOB frames are silently discarded.
type MultiplexReader struct {
	Reader  io.Reader
	Handler OOBHandler

	remaining int    // bytes left in the current MsgData frame
	pending   []byte // bytes of the current frame not yet delivered to a caller
}

func (r *MultiplexReader) Read(p []byte) (int, error) {
	for r.remaining == 0 {
		tag, payload, err := r.readFrame()
		if err != nil {
			return 0, err
		}
		if tag == MsgData {
			r.remaining = len(payload)
			if r.remaining == 0 {
				continue // zero-length DATA frame, read the next one
			}
			// Stash the payload by pretending it was just read: re-wrap it
			// as a fresh reader feeding subsequent Read calls. To avoid an
			// extra buffering layer we simply copy what fits into p now
			// and keep the rest pending via a small internal buffer.
			n := copy(p, payload)
			r.remaining -= n
			if r.remaining > 0 {
				r.pending = payload[n:]
			}
			return n, nil
		}
		if r.Handler != nil {
			if err := r.Handler(tag, payload); err != nil {
				return 0, err
			}
		}
	}
	n := copy(p, r.pending)
	r.remaining -= n
	r.pending = r.pending[n:]
	return n, nil
}

func (r *MultiplexReader) readFrame() (Msg, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.Reader, header[:]); err != nil {
		return 0, nil, err
	}
	h := binary.LittleEndian.Uint32(header[:])
	tag := Msg(h>>24) - mplexBase
	length := h & 0x00FFFFFF
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r.Reader, payload); err != nil {
			return 0, nil, err
		}
	}
	return tag, payload, nil
}
