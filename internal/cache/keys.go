package cache

import (
	"fmt"
	"time"
)

// ModelKey builds the cache key for a built model. The wall-clock day is
// part of the key because builders are only deterministic within a day:
// a cached model from yesterday must never serve today's request.
func ModelKey(model string, year int, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", model, year, day.UTC().Format("2006-01-02"))
}
