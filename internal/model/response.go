package model

// APIResponse is the envelope every endpoint returns: success mirrors the
// HTTP status class, data carries the payload, error the machine-readable
// failure.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

// APIError codes are stable contract; clients branch on Code, not Message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta accompanies list responses.
type Meta struct {
	Total int `json:"total"`
}
