package health

import (
	"fmt"
	"strings"
)

// Status represents the health status of a probe or a whole report.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the capitalized name used in reports.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "Healthy"
	case StatusDegraded:
		return "Degraded"
	case StatusUnhealthy:
		return "Unhealthy"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusHealthy, StatusDegraded, StatusUnhealthy:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus parses a status name, ignoring case.
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "healthy":
		return StatusHealthy, nil
	case "degraded":
		return StatusDegraded, nil
	case "unhealthy":
		return StatusUnhealthy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
	}
}
