package health

import "time"

// Status is the aggregate health state of the storage root.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Check is the result of one probe against the storage root.
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// DiskUsage describes the volume holding the storage root.
type DiskUsage struct {
	FreeBytes   uint64  `json:"freeBytes"`
	TotalBytes  uint64  `json:"totalBytes"`
	UsedPercent float64 `json:"usedPercent"`
	FreeLabel   string  `json:"freeLabel"`
	TotalLabel  string  `json:"totalLabel"`
}

// Report is the cached health snapshot served over the API.
type Report struct {
	Status    Status     `json:"status"`
	Checks    []Check    `json:"checks"`
	Disk      *DiskUsage `json:"disk,omitempty"`
	CheckedAt time.Time  `json:"checkedAt"`
}
