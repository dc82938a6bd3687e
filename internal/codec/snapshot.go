package codec

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the versioned identity payload attached to change notifications.
type Snapshot struct {
	Model   string         `msgpack:"model"`
	Version int            `msgpack:"version"`
	ID      any            `msgpack:"id"`
	Fields  map[string]any `msgpack:"fields"`
}

// SnapshotVersion is the payload layout version.
const SnapshotVersion = 1

// EncodeSnapshot serialises a snapshot with sorted map keys so equal
// snapshots produce equal bytes.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s.Version = SnapshotVersion
	s.ID = portable(s.ID)
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = portable(v)
	}
	s.Fields = fields

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}

// portable converts values msgpack has no stable form for.
func portable(v any) any {
	switch x := deref(v).(type) {
	case uuid.UUID:
		return x.String()
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC()
	default:
		return x
	}
}
