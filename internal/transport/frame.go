package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Frames are 0x94 0xC3, a big-endian u16 payload length, then the payload.
var frameHeader = [2]byte{0x94, 0xC3}

const (
	frameHeaderLen  = 4
	maxFramePayload = math.MaxUint16
)

type readFullFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, frameHeaderLen+len(payload))
	frame[0] = frameHeader[0]
	frame[1] = frameHeader[1]
	// #nosec G115 -- length is bounded by maxFramePayload above.
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[frameHeaderLen:], payload)

	return frame, nil
}

func readFrame(readFull readFullFunc) ([]byte, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	ln := int(binary.BigEndian.Uint16(lenBuf[:]))
	if ln <= 0 {
		return nil, fmt.Errorf("invalid frame length: %d", ln)
	}

	payload := make([]byte, ln)
	if err := readFull(payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	return payload, nil
}

func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 1: %w", err)
		}
		if buf[0] != frameHeader[0] {
			continue
		}
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header byte 2: %w", err)
		}
		if buf[0] == frameHeader[1] {
			return nil
		}
	}
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}

// frameAssembler rebuilds frames from arbitrarily split chunks, as delivered by
// BLE notifications. It is not safe for concurrent use.
type frameAssembler struct {
	buf []byte
}

// Feed appends chunk and returns every frame payload completed by it.
func (a *frameAssembler) Feed(chunk []byte) [][]byte {
	a.buf = append(a.buf, chunk...)

	var out [][]byte
	for {
		start := a.headerIndex()
		if start < 0 {
			// Keep a trailing first header byte, it may pair with the next chunk.
			if n := len(a.buf); n > 0 && a.buf[n-1] == frameHeader[0] {
				a.buf = a.buf[n-1:]
			} else {
				a.buf = a.buf[:0]
			}
			return out
		}
		a.buf = a.buf[start:]
		if len(a.buf) < frameHeaderLen {
			return out
		}
		ln := int(binary.BigEndian.Uint16(a.buf[2:4]))
		if ln == 0 {
			a.buf = a.buf[2:]
			continue
		}
		if len(a.buf) < frameHeaderLen+ln {
			return out
		}
		payload := make([]byte, ln)
		copy(payload, a.buf[frameHeaderLen:frameHeaderLen+ln])
		out = append(out, payload)
		a.buf = a.buf[frameHeaderLen+ln:]
	}
}

func (a *frameAssembler) Reset() {
	a.buf = a.buf[:0]
}

func (a *frameAssembler) headerIndex() int {
	for i := 0; i+1 < len(a.buf); i++ {
		if a.buf[i] == frameHeader[0] && a.buf[i+1] == frameHeader[1] {
			return i
		}
	}
	return -1
}

// splitChunks cuts a frame into pieces of at most size bytes.
func splitChunks(frame []byte, size int) [][]byte {
	if size <= 0 {
		size = len(frame)
	}
	chunks := make([][]byte, 0, (len(frame)+size-1)/size)
	for len(frame) > 0 {
		n := min(size, len(frame))
		chunks = append(chunks, frame[:n])
		frame = frame[n:]
	}
	return chunks
}
