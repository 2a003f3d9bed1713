package offline

import (
	"context"
	"encoding/json"
	"fmt"
)

// PersistKey is the KV key of the snapshot.
const PersistKey = "persist:root"

// SchemaVersion tags the snapshot layout. Bumping it discards every
// snapshot written by an older build.
const SchemaVersion = 1

// KV is durable byte storage. Get returns (nil, nil) for a missing key.
// The client's metadata repository satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type persistMeta struct {
	Version    int  `json:"version"`
	Rehydrated bool `json:"rehydrated"`
}

type outbox struct {
	Outbox []*Entry `json:"outbox"`
}

type envelope struct {
	State
	Offline outbox      `json:"offline"`
	Meta    persistMeta `json:"_persistMeta"`
}

func encodeSnapshot(st State, queue []*Entry, version int) ([]byte, error) {
	q := queue
	if q == nil {
		q = []*Entry{}
	}
	return json.Marshal(envelope{
		State:   st,
		Offline: outbox{Outbox: q},
		Meta:    persistMeta{Version: version, Rehydrated: true},
	})
}

// errVersionMismatch is returned by decodeSnapshot for a snapshot of
// another schema version.
type errVersionMismatch struct {
	got, want int
}

func (e errVersionMismatch) Error() string {
	return fmt.Sprintf("snapshot version %d, want %d", e.got, e.want)
}

func decodeSnapshot(b []byte, version int) (State, []*Entry, error) {
	var meta struct {
		Meta persistMeta `json:"_persistMeta"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return State{}, nil, fmt.Errorf("decode snapshot meta: %w", err)
	}
	if meta.Meta.Version != version {
		return State{}, nil, errVersionMismatch{got: meta.Meta.Version, want: version}
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return State{}, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	env.State.normalize()
	return env.State, env.Offline.Outbox, nil
}
