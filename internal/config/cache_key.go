package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPaperKey returns the cache key for a test's student-facing paper.
func (r *CacheKeyStruct) TestPaperKey(testID string) string {
	return fmt.Sprintf("test:%s:paper", testID)
}

// TestDefinitionKey returns the cache key for a test's full definition
// including grading data. Server-side only; never sent to clients.
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// AttemptSnapshotKey returns the cache key for an attempt's latest progress
// snapshot.
func (r *CacheKeyStruct) AttemptSnapshotKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:snapshot", attemptID)
}

// AttemptStartKey returns the cache key for an attempt's immutable start
// timestamp (unix seconds).
func (r *CacheKeyStruct) AttemptStartKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:started_at", attemptID)
}

// UserActiveAttemptKey returns the cache key for a user's currently active
// attempt on a test.
func (r *CacheKeyStruct) UserActiveAttemptKey(userID int, testID string) string {
	return fmt.Sprintf("user:%d:test:%s:attempt", userID, testID)
}

var CacheKey = NewCacheKeyStruct()
