package storage

import (
	"fmt"
	"strings"
)

// OpenKV opens one of the embedded key-value backends by name. SQL backends
// live in storage/sqldb and are selected by the caller.
func OpenKV(backend, path string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return NewMemDB(), nil
	case "leveldb":
		return NewLevelDB(path)
	case "bolt":
		return NewBoltDB(path, nil)
	default:
		return nil, fmt.Errorf("unsupported kv backend %q", backend)
	}
}
