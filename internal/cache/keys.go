package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("import_job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// MatchResultKey caches the ranked rooms of one seeker profile.
func MatchResultKey(companyID, profileID uuid.UUID, limit int) string {
	return fmt.Sprintf("match:%s:%s:%d", companyID, profileID, limit)
}

// MatchCompanyPattern matches every cached ranking of a company. Room writes
// invalidate it.
func MatchCompanyPattern(companyID uuid.UUID) string {
	return fmt.Sprintf("match:%s:*", companyID)
}
