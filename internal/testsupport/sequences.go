package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// Global counter for generating unique sequential IDs in tests
	testSequence uint64

	// Base timestamp to make names shorter
	baseTimestamp = time.Now().UnixNano()
)

func init() {
	// Initialize with current timestamp to ensure uniqueness across test runs
	testSequence = uint64(baseTimestamp % 1000000)
}

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("test_niche") -> "test_niche_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueString generates a unique string identifier
// Useful when you need guaranteed uniqueness (uses UUID)
func UniqueString() string {
	return uuid.New().String()
}

// UniqueTopicID generates a unique topic ID for catalog and sample tests
// Example: UniqueTopicID("pushups") -> "pushups_123456"
func UniqueTopicID(base string) string {
	return fmt.Sprintf("%s_%d", base, NextSequence())
}

// UniqueNiche generates a unique niche name
// Example: UniqueNiche() -> "niche_123456"
func UniqueNiche() string {
	return fmt.Sprintf("niche_%d", NextSequence())
}

// UniqueSource generates a unique collector source name
// Example: UniqueSource("tiktok") -> "tiktok_123456"
func UniqueSource(base string) string {
	return fmt.Sprintf("%s_%d", base, NextSequence())
}
