package response

// Response is the standard API envelope. Mutating endpoints carry a Message
// alongside the entity payload; errors carry Message plus an optional Error.
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Created wraps a mutation result with its confirmation message
func Created(statusCode int, message string, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, message string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Message:    message,
	}
}

// ErrorWithDetail includes the underlying error text for 4xx diagnostics
func ErrorWithDetail(statusCode int, message, detail string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Message:    message,
		Error:      detail,
	}
}
