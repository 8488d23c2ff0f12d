package groundrag

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecordID derives a deterministic record identifier from a chunk's identity.
// It is a version-5 UUID over "{source}:{chunkIndex}" in the URL namespace,
// so re-indexing an unchanged corpus upserts the same IDs and never
// duplicates points.
func RecordID(source string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s:%d", source, chunkIndex)).String()
}

// ShortName returns the last path segment of a source identifier.
// Required-source sets and quota maps are keyed by short name.
func ShortName(source string) string {
	if i := strings.LastIndexByte(source, '/'); i >= 0 {
		return source[i+1:]
	}
	return source
}
