package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func HistoryKey(userID uuid.UUID, limit int) string {
	return fmt.Sprintf("positioning:history:%s:%d", userID, limit)
}

func RateLimitKey(userID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:solve:%s", userID)
}
