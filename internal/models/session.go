package models

// Session is an authenticated evaluation-server session.
type Session struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// Evaluation is a competition run exposed by the evaluation server.
type Evaluation struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}
