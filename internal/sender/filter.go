package sender

import (
	"fmt"

	"github.com/colinmarc/rsyncsend/internal/rsyncwire"
)

// FilterList holds the filter rules the peer sent ahead of the
// transfer. This revision does not apply filter rules (§1 Non-goals);
// the only contract it must honor is rejecting a non-empty rule set,
// since nothing downstream knows how to act on one yet.
type FilterList struct {
	Filters []string
}

// RecvFilterList implements §4.I startup step 1: read an int32 length
// followed by that many bytes, and reject a non-empty payload as a
// protocol error (rule evaluation is explicitly out of scope).
func RecvFilterList(c *rsyncwire.Conn) (*FilterList, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading filter list length: %w", err)
	}
	if n == 0 {
		return &FilterList{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("rsync: protocol error: negative filter list length %d", n)
	}
	payload, err := c.Get(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading filter list payload: %w", err)
	}
	return nil, fmt.Errorf("rsync: protocol error: non-empty filter rule set (%d bytes) not supported: %q", n, payload)
}
