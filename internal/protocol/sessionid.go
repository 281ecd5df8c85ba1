package protocol

import (
	"sync"

	"github.com/google/uuid"
)

// Session id prefixes.
const (
	PrefixQuote  = "qs"
	PrefixChart  = "cs"
	PrefixReplay = "rs"
)

const (
	sessionIDLength = 12
	alphanumeric    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// issued holds every id handed out by this process.
var issued sync.Map

// GenerateSessionID returns "<prefix>_<12 alphanumeric chars>". An empty
// prefix means PrefixQuote. Ids are never repeated within a process.
func GenerateSessionID(prefix string) string {
	if prefix == "" {
		prefix = PrefixQuote
	}
	for {
		id := prefix + "_" + randomAlphanumeric()
		if _, loaded := issued.LoadOrStore(id, struct{}{}); !loaded {
			return id
		}
	}
}

// randomAlphanumeric draws from the random bytes of a v4 UUID, skipping the
// version and variant bytes.
func randomAlphanumeric() string {
	u := uuid.New()
	out := make([]byte, 0, sessionIDLength)
	for i, b := range u {
		if i == 6 || i == 8 {
			continue
		}
		out = append(out, alphanumeric[int(b)%len(alphanumeric)])
		if len(out) == sessionIDLength {
			break
		}
	}
	return string(out)
}
