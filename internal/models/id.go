package models

import "github.com/google/uuid"

// ensureID returns id, or a fresh UUID when id is empty.
func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
