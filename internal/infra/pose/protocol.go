package pose

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/vmihailenco/msgpack/v5"
)

// Messages are msgpack documents preceded by a 4 byte big-endian length.
const maxMessageSize = 64 << 20

const (
	typeReady    = "ready"
	typeEstimate = "estimate"
	typeResult   = "result"
)

var ErrMessageTooLarge = errors.New("pose message too large")

type estimateRequest struct {
	Type   string `msgpack:"type"`
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Image  []byte `msgpack:"image"`
}

type response struct {
	Type      string              `msgpack:"type"`
	Seq       uint64              `msgpack:"seq"`
	Found     bool                `msgpack:"found"`
	Landmarks []movement.Keypoint `msgpack:"landmarks"`
	Error     string              `msgpack:"error"`
	Model     string              `msgpack:"model"`
}

func writeMessage(w io.Writer, v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if len(body) > maxMessageSize {
		return ErrMessageTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxMessageSize {
		return ErrMessageTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
