package domain

// RemoteStatus enumerates the member states the provider knows about.
// The set is closed; "cleaned" is terminal and is never overwritten by
// anything this system sends.
type RemoteStatus string

const (
	StatusSubscribed   RemoteStatus = "subscribed"
	StatusUnsubscribed RemoteStatus = "unsubscribed"
	StatusPending      RemoteStatus = "pending"
	StatusCleaned      RemoteStatus = "cleaned"
)

// Valid reports whether s is one of the four provider statuses.
func (s RemoteStatus) Valid() bool {
	switch s {
	case StatusSubscribed, StatusUnsubscribed, StatusPending, StatusCleaned:
		return true
	}
	return false
}

// IsTerminal reports whether the status may never be transitioned away from.
func (s RemoteStatus) IsTerminal() bool { return s == StatusCleaned }
