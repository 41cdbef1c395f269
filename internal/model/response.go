package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Details  string   `json:"details,omitempty"`
	Messages []string `json:"messages,omitempty"`
}
