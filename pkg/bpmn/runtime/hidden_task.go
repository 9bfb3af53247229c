package runtime

import "time"

// HiddenTask records that a human task is hidden from one user's task list.
// It is keyed by the pair and carries no version.
type HiddenTask struct {
	ActivityInstanceKey int64     `json:"aik"`
	UserKey             int64     `json:"uk"`
	HiddenAt            time.Time `json:"ha"`
}
