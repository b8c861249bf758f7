package index

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID creates a unique consumer ID for Redis consumer groups.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return fmt.Sprintf("%s-%s", host, ulid.MustNew(ulid.Timestamp(time.Now()), entropy))
}
