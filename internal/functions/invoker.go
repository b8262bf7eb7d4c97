// Package functions provides the client for invoking named serverless
// functions on the record store's function runtime.
package functions

import (
	"context"
	"encoding/json"
)

// EmailRequest is the body for the deal email generation function.
type EmailRequest struct {
	DealName    string  `json:"dealName"`
	DealValue   float64 `json:"dealValue"`
	ContactName string  `json:"contactName"`
}

// Result is the outcome of a function invocation. Raw keeps the undecoded
// response body for diagnostics when the function reports failure.
type Result struct {
	Success bool            `json:"success"`
	Email   string          `json:"email,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Invoker invokes a named function with a JSON body. The function ref is a
// deployment-specific identifier supplied through configuration.
type Invoker interface {
	Invoke(ctx context.Context, ref string, body any) (*Result, error)
}
