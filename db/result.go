package db

// Result is the outcome of a write the user can act on. Infrastructure
// failures are returned as errors instead.
type Result struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func OK(msg string) Result   { return Result{Success: true, Message: msg} }
func Fail(msg string) Result { return Result{Success: false, Message: msg} }

// Invalid reports field errors keyed by form field name.
func Invalid(field, msg string) Result {
	return Result{Success: false, Errors: map[string]string{field: msg}}
}
