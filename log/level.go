package log

import "strings"

// Level defines the severity of a log entry. Levels are totally ordered:
// higher values indicate more critical events and pass stricter output
// filtering. The numeric values are persisted by the config store and must
// stay stable across releases.
type Level int8

const (
	// VerboseLevel provides extremely detailed diagnostic information,
	// suitable for tracing request flows and detailed device state.
	VerboseLevel Level = iota

	// DebugLevel contains debugging information useful during development
	// and troubleshooting.
	DebugLevel

	// InfoLevel contains general informational messages about normal
	// operation: lifecycle events, configuration changes.
	InfoLevel

	// WarningLevel indicates potentially harmful situations that do not
	// prevent operation.
	WarningLevel

	// ErrorLevel indicates serious problems that require attention:
	// failed operations, inconsistent state.
	ErrorLevel

	// FatalLevel represents critical errors. Logging at this level does
	// not terminate the process; the engine never crashes its caller.
	FatalLevel
)

// numLevels is the number of valid severities, used to size counter arrays.
const numLevels = int(FatalLevel) + 1

// String returns the uppercase name of the level.
func (l Level) String() string {
	switch l {
	case VerboseLevel:
		return "VERBOSE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Padded returns the level name padded with spaces to a fixed 7-character
// column so formatted lines align vertically.
func (l Level) Padded() string {
	switch l {
	case VerboseLevel:
		return "VERBOSE"
	case DebugLevel:
		return "DEBUG  "
	case InfoLevel:
		return "INFO   "
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR  "
	case FatalLevel:
		return "FATAL  "
	default:
		return "UNKNOWN"
	}
}

// Clamp saturates an out-of-range value to the nearest valid level.
// Persisted or user-supplied levels are never stored as garbage.
func (l Level) Clamp() Level {
	if l < VerboseLevel {
		return VerboseLevel
	}
	if l > FatalLevel {
		return FatalLevel
	}
	return l
}

// ParseLevel converts a string to a Level with case-insensitive matching.
// Unrecognized input yields DebugLevel, the default print level, ensuring
// safe behavior when the persisted config is stale or hand-edited.
func ParseLevel(levelStr string) Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "VERBOSE":
		return VerboseLevel
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARNING":
		return WarningLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	}
	return DebugLevel
}
