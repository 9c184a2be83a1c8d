package utils

import (
	"github.com/google/uuid"
)

// GenerateUUIDString mints ids for matches, connections and player
// identities.
func GenerateUUIDString() string {
	id := uuid.New()
	return id.String()
}
