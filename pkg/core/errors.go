package core

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid project setup: an unknown connection
// kind, bad connection settings, or duplicate query or page names.
type ConfigurationError struct {
	// Subject names what is misconfigured (e.g. "connection.type", "query sales").
	Subject string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Subject != "" {
		fmt.Fprintf(&b, " in %s", e.Subject)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// QueryExecutionError reports a backend failure while executing a query file.
type QueryExecutionError struct {
	Query string // query name (file base name)
	File  string // query file path
	Err   error  // backend error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query %q (%s) failed: %v", e.Query, e.File, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// ContentError reports an unreadable or malformed content source file.
type ContentError struct {
	File    string
	Message string
	Err     error
}

func (e *ContentError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid content"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, msg)
}

func (e *ContentError) Unwrap() error { return e.Err }

// TemplateError reports an unresolvable template binding, such as a chart
// function referencing a column its table does not have.
type TemplateError struct {
	File     string // content file being rendered, if known
	Line     int    // line in File, if known
	Function string // chart function name, if the error came from one
	Field    string // missing field, if any
	Message  string
	Err      error
}

func (e *TemplateError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	b.WriteString("template error")
	if e.Function != "" {
		fmt.Fprintf(&b, " in %s", e.Function)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q not found", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TemplateError) Unwrap() error { return e.Err }
