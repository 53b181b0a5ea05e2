package models

import "github.com/google/uuid"

// ensureID assigns a fresh identifier before insert so rows get ids on every driver.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
