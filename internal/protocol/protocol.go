// Package protocol implements straw-boss's control-plane wire format: a
// 1-byte type tag plus a 4-byte big-endian length header, followed by a
// msgpack-encoded payload. One message is read or written per call; the
// framing itself is grounded directly on the request/reply codec the
// teacher uses for its root<->worker pipe protocol, adapted here to a
// stream socket with no background receive goroutine, since the
// control plane is one request and at most one reply per connection.
package protocol

import (
	"fmt"
	"io"
	"math"
	"reflect"

	"encoding/binary"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const headerSize = 5

var order = binary.BigEndian

// TagMap associates wire-format type tags with the Go types they
// decode to, in both directions.
type TagMap struct {
	toTag  map[reflect.Type]uint8
	toType map[uint8]reflect.Type
}

// NewTagMap builds a TagMap from a tag->type table.
func NewTagMap(toType map[uint8]reflect.Type) *TagMap {
	toTag := make(map[reflect.Type]uint8, len(toType))
	for tag, ty := range toType {
		toTag[ty] = tag
	}
	return &TagMap{toTag: toTag, toType: toType}
}

// Codec reads and writes single framed messages over a stream
// connection (typically a Unix-domain socket).
type Codec struct {
	conn io.ReadWriter
	tags *TagMap
}

// NewCodec wraps conn for framing messages tagged according to tags.
func NewCodec(conn io.ReadWriter, tags *TagMap) *Codec {
	return &Codec{conn: conn, tags: tags}
}

// WriteMessage encodes and writes a single message.
func (c *Codec) WriteMessage(msg interface{}) error {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(payload) > math.MaxUint32 {
		return fmt.Errorf("failed to marshal message: message too large")
	}

	tag, ok := c.tags.toTag[reflect.TypeOf(msg)]
	if !ok {
		return fmt.Errorf("unknown message type: %s", reflect.TypeOf(msg))
	}

	header := make([]byte, headerSize)
	header[0] = tag
	order.PutUint32(header[1:], uint32(len(payload)))

	if err := writeFull(c.conn, header); err != nil {
		return err
	}
	return writeFull(c.conn, payload)
}

// ReadMessage reads and decodes a single message, returning it as the
// concrete pointer type registered in the Codec's TagMap.
func (c *Codec) ReadMessage() (interface{}, error) {
	header := make([]byte, headerSize)
	if err := readFull(c.conn, header); err != nil {
		return nil, err
	}

	length := order.Uint32(header[1:])
	log.Trace().Uint32("length", length).Uint8("tag", header[0]).Msg("reading control message")

	ty, ok := c.tags.toType[header[0]]
	if !ok {
		return nil, fmt.Errorf("unknown message tag %d", header[0])
	}

	payload := make([]byte, length)
	if err := readFull(c.conn, payload); err != nil {
		return nil, err
	}

	val := reflect.New(ty).Interface()
	if err := msgpack.Unmarshal(payload, val); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s message: %w", ty.Name(), err)
	}
	return val, nil
}

func writeFull(w io.Writer, data []byte) error {
	for len(data) != 0 {
		n, err := w.Write(data)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("failed to send message: stream closed")
		}
		data = data[n:]
	}
	return nil
}

func readFull(r io.Reader, data []byte) error {
	for len(data) != 0 {
		n, err := r.Read(data)
		if err != nil {
			return fmt.Errorf("failed to receive message: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("failed to receive message: stream closed")
		}
		data = data[n:]
	}
	return nil
}
