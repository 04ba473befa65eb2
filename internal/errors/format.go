package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// asError coerces any error into *Error, wrapping foreign errors under the
// internal code so all formatters can assume the structured shape.
func asError(err error) *Error {
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForUser renders an error for end users: the message, a suggestion
// when one exists, and the code for support reference. With debug set,
// details and the cause chain are appended.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}
	ae, ok := err.(*Error)
	if !ok {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", ae.Message)
	if ae.Suggestion != "" {
		fmt.Fprintf(&b, "\nSuggestion: %s\n", ae.Suggestion)
	}
	if debug {
		for k, v := range ae.Details {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
		if ae.Cause != nil {
			fmt.Fprintf(&b, "  cause: %s\n", ae.Cause)
		}
	}
	fmt.Fprintf(&b, "\n[%s]", ae.Code)
	return b.String()
}

// FormatForCLI renders an error compactly for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ae := asError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", ae.Message)
	if ae.Suggestion != "" {
		fmt.Fprintf(&b, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&b, "  Code: %s\n", ae.Code)
	return b.String()
}

// FormatJSON renders an error as a JSON object for machine consumption.
// A nil error encodes as JSON null.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ae := asError(err)

	payload := struct {
		Code       string            `json:"code"`
		Message    string            `json:"message"`
		Category   string            `json:"category"`
		Severity   string            `json:"severity"`
		Details    map[string]string `json:"details,omitempty"`
		Suggestion string            `json:"suggestion,omitempty"`
		Cause      string            `json:"cause,omitempty"`
		Retryable  bool              `json:"retryable"`
	}{
		Code:       ae.Code,
		Message:    ae.Message,
		Category:   string(ae.Category),
		Severity:   string(ae.Severity),
		Details:    ae.Details,
		Suggestion: ae.Suggestion,
		Retryable:  ae.Retryable,
	}
	if ae.Cause != nil {
		payload.Cause = ae.Cause.Error()
	}
	return json.Marshal(payload)
}

// FormatForLog flattens an error into slog attribute pairs.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	ae, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	attrs := map[string]any{
		"error_code": ae.Code,
		"message":    ae.Message,
		"category":   string(ae.Category),
		"severity":   string(ae.Severity),
		"retryable":  ae.Retryable,
	}
	if ae.Cause != nil {
		attrs["cause"] = ae.Cause.Error()
	}
	if ae.Suggestion != "" {
		attrs["suggestion"] = ae.Suggestion
	}
	for k, v := range ae.Details {
		attrs["detail_"+k] = v
	}
	return attrs
}
