package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	usersFile = "users.json"
	roomsFile = "rooms.json"
)

// Snapshotter periodically serializes the store to two JSON files and
// restores them on startup. Write failures are logged and retried on the
// next cycle; they never affect the in-memory state.
type Snapshotter struct {
	store    *Store
	dir      string
	interval time.Duration
	log      *zerolog.Logger
}

// NewSnapshotter builds a snapshotter writing to dir on the given interval.
func NewSnapshotter(store *Store, dir string, interval time.Duration, logger *zerolog.Logger) *Snapshotter {
	return &Snapshotter{store: store, dir: dir, interval: interval, log: logger}
}

// Load restores both maps from disk. A missing or unreadable file starts
// that map fresh. Loaded users are forced offline and out of any room: no
// session can resume across a restart.
func (sn *Snapshotter) Load() {
	var users map[string]*UserRecord
	if err := readJSON(filepath.Join(sn.dir, usersFile), &users); err != nil {
		sn.log.Info().Err(err).Msg("no users snapshot, starting fresh")
	} else {
		for _, u := range users {
			u.Online = false
			u.Room = ""
			if u.State == nil {
				u.State = make(map[string]any)
			}
		}
		sn.store.mu.Lock()
		sn.store.users = users
		sn.store.mu.Unlock()
		sn.log.Info().Int("users", len(users)).Msg("users snapshot loaded")
	}

	var rooms map[string]*RoomRecord
	if err := readJSON(filepath.Join(sn.dir, roomsFile), &rooms); err != nil {
		sn.log.Info().Err(err).Msg("no rooms snapshot, starting fresh")
	} else {
		for _, r := range rooms {
			if r.State == nil {
				r.State = make(map[string]any)
			}
		}
		sn.store.mu.Lock()
		sn.store.rooms = rooms
		sn.store.mu.Unlock()
		sn.log.Info().Int("rooms", len(rooms)).Msg("rooms snapshot loaded")
	}
}

// Flush writes both maps to disk. Each file is written independently so a
// failing one does not block the other.
func (sn *Snapshotter) Flush() {
	if err := os.MkdirAll(sn.dir, 0o755); err != nil {
		sn.log.Error().Err(err).Str("dir", sn.dir).Msg("create snapshot dir")
		return
	}

	if err := writeJSON(filepath.Join(sn.dir, usersFile), sn.store.Users()); err != nil {
		sn.log.Error().Err(err).Msg("flush users snapshot")
	} else {
		sn.log.Debug().Msg("users snapshot flushed")
	}

	if err := writeJSON(filepath.Join(sn.dir, roomsFile), sn.store.Rooms()); err != nil {
		sn.log.Error().Err(err).Msg("flush rooms snapshot")
	} else {
		sn.log.Debug().Msg("rooms snapshot flushed")
	}
}

// Run flushes on every interval tick until the context is cancelled, then
// performs a final flush on the way out.
func (sn *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(sn.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sn.Flush()
		case <-ctx.Done():
			sn.Flush()
			return
		}
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
