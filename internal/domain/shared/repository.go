package shared

// Page holds skip/limit pagination as accepted by list endpoints
type Page struct {
	Skip  int
	Limit int
}

const (
	// DefaultPageLimit is used when a caller does not set a limit
	DefaultPageLimit = 100
	// MaxPageLimit caps any requested limit
	MaxPageLimit = 1000
)

// Normalize clamps skip and limit to valid bounds
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
