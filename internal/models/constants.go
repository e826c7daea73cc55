package models

const (
	// DefaultPageSize is used when a listing request carries no size.
	DefaultPageSize = 10

	// DefaultQuotaLimit caps write requests per user within DefaultQuotaWindow seconds.
	DefaultQuotaLimit  = 120
	DefaultQuotaWindow = 60
)

// PageOffset snaps from to the start of the page it falls on. A from that is
// not a multiple of size lands on the preceding page boundary.
func PageOffset(from, size int) int {
	if size <= 0 {
		return 0
	}
	return (from / size) * size
}
