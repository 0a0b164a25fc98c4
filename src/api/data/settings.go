package data

import (
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/types"
)

// Portal tuning knobs stored in the settings table. A missing row means the
// compiled-in default applies.
const (
	// SettingVotingWindowHours overrides the amendment voting window.
	SettingVotingWindowHours = "voting_window_hours"
	// SettingMotionQuorumFloor overrides the minimum motion quorum.
	SettingMotionQuorumFloor = "motion_quorum_floor"
)

var (
	settingsMu    sync.RWMutex
	settingsCache map[string]string
)

// LoadSettings reads every settings row into the in-process cache. Called at
// boot; RefreshSettings rereads after a value changes.
func LoadSettings(db *gorm.DB) error {
	var settings []types.Setting
	if err := db.Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string)
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}

	return nil
}

// GetSetting returns the raw value for a setting name, empty when unset.
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// GetSettingInt returns a numeric setting, falling back to def when the
// setting is unset or not a number.
func GetSettingInt(name string, def int) int {
	v := GetSetting(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// RefreshSettings reloads the cache from the database.
func RefreshSettings(db *gorm.DB) error {
	return LoadSettings(db)
}
