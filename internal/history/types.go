package history

import "time"

// Session groups the records of one conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is one answered query: how it was interpreted, which strategy
// served it and which documents came back.
type Record struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Query          string    `json:"query"`
	CorrectedQuery string    `json:"corrected_query"`
	Intent         string    `json:"intent"`
	References     []string  `json:"references"`
	Interpretation string    `json:"interpretation"`
	Strategy       string    `json:"strategy"`
	Confidence     float64   `json:"confidence"`
	Reconciliation string    `json:"reconciliation"`
	DocIDs         []string  `json:"doc_ids"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
