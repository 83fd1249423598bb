package logging

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// AnonTag returns a stable anonymized tag for a submitter ID. The relay is
// anonymous end to end, so raw user IDs never appear in log output; the tag
// still lets log lines about one submitter be correlated.
func AnonTag(userID string) string {
	return fmt.Sprintf("u%08x", xxhash.ChecksumString32(userID))
}
