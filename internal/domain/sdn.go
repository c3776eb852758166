package domain

import (
	"errors"
	"time"
)

// SDN fallback import states. At most one row exists per state.
const (
	SDNImportNew     = "New"
	SDNImportCurrent = "Current"
	SDNImportDiscard = "Discard"
)

// ErrNoCurrentSDNImport is returned when a swap would leave no Current import.
var ErrNoCurrentSDNImport = errors.New("sdn fallback: no current import after swap")

// SDNFallbackMetadata describes one downloaded copy of the SDN fallback list.
type SDNFallbackMetadata struct {
	ID                int64      `json:"id"`
	FileChecksum      string     `json:"fileChecksum"`
	DownloadTimestamp time.Time  `json:"downloadTimestamp"`
	ImportTimestamp   *time.Time `json:"importTimestamp,omitempty"`
	ImportState       string     `json:"importState"`
}
