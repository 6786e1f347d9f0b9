package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func CycleStatusKey(userID uuid.UUID) string {
	return fmt.Sprintf("cycle:status:%s", userID)
}

func CycleCountKey(userID uuid.UUID) string {
	return fmt.Sprintf("cycle:count:%s", userID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func SearchResultKey(userID uuid.UUID, queryHash string) string {
	return fmt.Sprintf("search:result:%s:%s", userID, queryHash)
}
