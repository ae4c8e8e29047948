package log

// Maximum lengths for the string fields of an Entry. Every string is
// truncated at creation so an Entry has a bounded footprint and the queue
// capacity computed from a memory budget stays honest.
const (
	// MaxSourceLength bounds the source file and function fields.
	MaxSourceLength = 64

	// MaxMessageLength bounds the formatted message.
	MaxMessageLength = 512
)

// entrySize approximates the in-memory footprint of one queue slot: the
// bounded string payloads plus headers, timestamps, level and core id.
const entrySize = 2*MaxSourceLength + MaxMessageLength + 96

// Entry is an immutable snapshot of one log event. Entries are created only
// at a log call site, travel through the queue by value and are consumed
// exactly once by the consumer task.
type Entry struct {
	// UnixMillis is the wall-clock timestamp in milliseconds since epoch.
	UnixMillis uint64

	// MonoMillis is the monotonic clock reading in milliseconds, anchored
	// at engine creation. It never jumps backwards on NTP adjustment.
	MonoMillis uint64

	// Level is the severity the entry was submitted at, already clamped.
	Level Level

	// CoreID identifies the execution core of the producing call site.
	CoreID int

	// File is the truncated base path of the source file.
	File string

	// Function is the truncated name of the calling function.
	Function string

	// Message is the truncated, fully formatted message text.
	Message string
}

// truncate bounds s to max bytes. It never grows the string.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
