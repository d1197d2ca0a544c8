package entity

// User represents the authenticated account owner as reported by the
// identity service. It is owned by the session orchestrator: sourced at
// bootstrap or login, cleared on logout.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
