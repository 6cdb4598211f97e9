package store

import "time"

// BuildRecord captures the result of a compile run.
type BuildRecord struct {
	Board     string    `json:"board"`
	Sketch    string    `json:"sketch"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	Artifacts []string  `json:"artifacts"`
	SizeInfo  string    `json:"size_info,omitempty"`
}

// FlashRecord captures the result of a flash operation.
type FlashRecord struct {
	Board     string    `json:"board"`
	Port      string    `json:"port"`
	Firmware  string    `json:"firmware,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
}

// SerialLog tracks a serial monitor session.
type SerialLog struct {
	Port      string    `json:"port"`
	BaudRate  int       `json:"baud_rate"`
	Timestamp time.Time `json:"timestamp"`
	LogFile   string    `json:"log_file"`
}
