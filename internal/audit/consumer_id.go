package audit

import (
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process within the audit consumer group as
// "<host>-<ulid>". A restarted process gets a fresh name, and whatever its
// predecessor left pending is reclaimed by XAUTOCLAIM.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "userdesk"
	}
	return host + "-" + strings.ToLower(ulid.Make().String())
}
