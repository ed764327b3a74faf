package integration

import (
	"fmt"
	"sync/atomic"
)

var userSeq atomic.Int64

// TestUser generates unique login credentials. Login ids are alphanumeric
// to pass signup validation.
func TestUser(suffix string) (userID, password string) {
	userID = fmt.Sprintf("user%d%s", userSeq.Add(1), suffix)
	password = "boardPass123"
	return
}
