package backupdomain

import "time"

// MetadataFileName sits inside every backup directory.
const MetadataFileName = "backup.json"

// Record is the persisted metadata for one captured backup. Its file list
// always matches what was physically copied into the backup directory.
type Record struct {
	PluginID   string    `json:"pluginId"`
	CapturedAt time.Time `json:"capturedAt"`
	Version    string    `json:"version"`
	Path       string    `json:"path"`
	Files      []string  `json:"files"`
}
