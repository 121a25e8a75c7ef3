// HTMX responses are built with a fluent builder that sets the HX-* headers
// and keeps response formatting consistent.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"workdiary/internal/board"
)

// EventEntryFocus is raised on the client after a selection swap; its payload
// is a board.ScrollCommand.
const EventEntryFocus = "entry:focus"

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers      map[string]interface{}
	settleTrigger map[string]interface{}
	statusCode    int
	body          []byte
	headers       map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:      make(map[string]interface{}),
		settleTrigger: make(map[string]interface{}),
		statusCode:    http.StatusOK,
		headers:       make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event to the HX-Trigger header, raised as soon as the
// response arrives.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerAfterSettle adds a named event to HX-Trigger-After-Settle, raised
// once swapped content is in the DOM.
func (b *HTMXResponseBuilder) TriggerAfterSettle(name string, data interface{}) *HTMXResponseBuilder {
	b.settleTrigger[name] = data
	return b
}

// TriggerEntryFocus asks the client to scroll the selected card into view.
// It fires after settle so the card it targets is the freshly swapped one.
func (b *HTMXResponseBuilder) TriggerEntryFocus(cmd board.ScrollCommand) *HTMXResponseBuilder {
	return b.TriggerAfterSettle(EventEntryFocus, cmd)
}

// PushURL sets HX-Push-Url so the browser history tracks the board state.
func (b *HTMXResponseBuilder) PushURL(u string) *HTMXResponseBuilder {
	return b.Header("HX-Push-Url", u)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes.
func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html []byte) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = html
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}
	if len(b.settleTrigger) > 0 {
		if triggerJSON, err := json.Marshal(b.settleTrigger); err == nil {
			w.Header().Set("HX-Trigger-After-Settle", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML([]byte(`<div class="error">` + escapedMsg + `</div>`))
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
