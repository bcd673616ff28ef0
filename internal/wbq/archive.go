package wbq

import (
	"fmt"
	"time"
)

// InboxPath builds the archive-relative path for an agent's monthly
// inbox shard: agents/<name>/inbox/<YYYY>/<MM>/<file>.md
func InboxPath(agentName string, ts time.Time, file string) string {
	return fmt.Sprintf("agents/%s/inbox/%04d/%02d/%s.md", agentName, ts.Year(), int(ts.Month()), file)
}

// ThreadPath builds the archive-relative path for a thread append.
func ThreadPath(threadSlug, file string) string {
	return fmt.Sprintf("threads/%s/%s.md", threadSlug, file)
}

// ProjectMetadataPath builds the archive-relative path for project
// metadata writes.
func ProjectMetadataPath(projectSlug, file string) string {
	return fmt.Sprintf("projects/%s/%s", projectSlug, file)
}

// ReservationPath builds the archive-relative path for a file
// reservation record.
func ReservationPath(projectSlug string, reservationID int64) string {
	return fmt.Sprintf("reservations/%s/%d.json", projectSlug, reservationID)
}
