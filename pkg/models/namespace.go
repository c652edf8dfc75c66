package models

import "time"

// Namespace is a named project workspace with its own root storage path.
// All training and clone artifacts of a project live under HomePath.
type Namespace struct {
	Name      string `json:"name" yaml:"name"`
	HomePath  string `json:"homePath" yaml:"home_path"`
	CreatedAt int64  `json:"createdAt" yaml:"created_at"` // epoch milliseconds
}

// Created returns CreatedAt as a time value.
func (n Namespace) Created() time.Time {
	if n.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(n.CreatedAt)
}
