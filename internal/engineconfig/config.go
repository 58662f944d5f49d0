// Package engineconfig defines the state persisted across restarts
// (last track/position, playback mode, sort order, volume) as a TOML
// file under os.UserConfigDir(), with a default load/save path any
// front-end can use.
package engineconfig

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"playbackengine/internal/library"
	"playbackengine/internal/queue"
)

// PersistedState is the engine's view of what a caller should
// remember across restarts.
type PersistedState struct {
	LastTrackID      string  `toml:"last_track_id"`
	LastPositionSecs float64 `toml:"last_position_secs"`
	LastPlaybackMode int     `toml:"last_playback_mode"`
	LastSortOrder    int     `toml:"last_sort_order"`
	LastVolume       float64 `toml:"last_volume"`
}

// TrackID returns the persisted track id as a library.TrackId, or
// false if none was saved.
func (p *PersistedState) TrackID() (library.TrackId, bool) {
	if p.LastTrackID == "" {
		return "", false
	}
	return library.TrackId(p.LastTrackID), true
}

// Mode returns the persisted playback mode.
func (p *PersistedState) Mode() queue.Mode { return queue.Mode(p.LastPlaybackMode) }

// SortOrder returns the persisted sort order.
func (p *PersistedState) SortOrder() library.SortOrder { return library.SortOrder(p.LastSortOrder) }

// Default returns a PersistedState with no saved track and full
// volume.
func Default() *PersistedState {
	return &PersistedState{LastVolume: 1.0}
}

// path returns <UserConfigDir>/playbackengine/state.toml, creating the
// directory if needed.
func path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	appDir := filepath.Join(dir, "playbackengine")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(appDir, "state.toml"), nil
}

// Load reads the persisted state, returning defaults (and writing
// them) if no file exists yet.
func Load() (*PersistedState, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	state := Default()
	if _, err := os.Stat(p); os.IsNotExist(err) {
		if err := Save(state); err != nil {
			return nil, err
		}
		return state, nil
	}

	if _, err := toml.DecodeFile(p, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save writes the persisted state back to disk.
func Save(state *PersistedState) error {
	p, err := path()
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(state)
}
