package pool

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// CropRect is a crop rectangle in buffer pixel coordinates.
type CropRect struct {
	Left   int32 `msgpack:"l"`
	Top    int32 `msgpack:"t"`
	Right  int32 `msgpack:"r"`
	Bottom int32 `msgpack:"b"`
}

// Metadata is the per-frame information travelling with a posted buffer.
type Metadata struct {
	Timestamp     int64    `msgpack:"ts"`
	AutoTimestamp bool     `msgpack:"auto_ts"`
	Dataspace     int32    `msgpack:"ds"`
	Crop          CropRect `msgpack:"crop"`
	ScalingMode   int32    `msgpack:"scale"`
	Transform     uint32   `msgpack:"xform"`
}

// EncodeMetadata serializes m into the opaque block passed to Pool.Post.
func EncodeMetadata(m Metadata) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("pool: encode metadata: %w", err)
	}
	return b, nil
}

// DecodeMetadata parses a block produced by EncodeMetadata. An empty block
// decodes to the zero Metadata.
func DecodeMetadata(b []byte) (Metadata, error) {
	var m Metadata
	if len(b) == 0 {
		return m, nil
	}
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Metadata{}, fmt.Errorf("pool: decode metadata: %w", err)
	}
	return m, nil
}
