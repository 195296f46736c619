// Package evaluation defines the request types and client for the
// competition evaluation server.
package evaluation

import "encoding/json"

// RequestBody is the JSON body of POST /submit/{evaluationId}.
type RequestBody struct {
	AnswerSets []AnswerSet `json:"answerSets"`
}

// AnswerSet groups the answers of a single submission.
type AnswerSet struct {
	Answers []Answer `json:"answers"`
}

// Answer is either a temporal range in a media item (KIS) or a free-text
// answer (QA, TRAKE).
type Answer struct {
	MediaItemName string `json:"mediaItemName,omitempty"`
	Start         *int64 `json:"start,omitempty"`
	End           *int64 `json:"end,omitempty"`
	Text          string `json:"text,omitempty"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SubmitResponse carries the evaluation server's verdict.
type SubmitResponse struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse is the error body returned by the evaluation server.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}
