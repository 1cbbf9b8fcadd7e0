package testutil

import (
	"fmt"
	"math/rand"
	"time"
)

// RandomEmail returns a unique email address for a test account.
func RandomEmail() string {
	return fmt.Sprintf("user-%d-%d@example.com", time.Now().UnixNano(), rand.Intn(10000))
}

// RandomTitle returns a unique title with the given prefix. Use it for
// columns with a uniqueness constraint, like event titles.
func RandomTitle(prefix string) string {
	return fmt.Sprintf("%s %d-%d", prefix, time.Now().UnixNano(), rand.Intn(10000))
}
