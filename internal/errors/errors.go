package errors

import "fmt"

type Kind int

const (
	// Setup covers bad arguments, missing files and socket failures before
	// any network exposure.
	Setup Kind = iota
	// Protocol covers an invalid request from the connected client.
	Protocol
	// Transport covers write failures and peer disconnects mid-transfer.
	Transport
	// Collaborator covers optional helpers (mDNS, MIME sniffing, terminal
	// probing). These degrade to a default and are never fatal.
	Collaborator
)

func (k Kind) String() string {
	switch k {
	case Setup:
		return "setup"
	case Protocol:
		return "protocol"
	case Transport:
		return "transport"
	case Collaborator:
		return "collaborator"
	}
	return "unknown"
}

type AppError struct {
	Kind    Kind
	Source  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether err must terminate the process. There is exactly one
// client and no supervisory layer to recover into, so every kind except
// Collaborator is terminal.
func Fatal(e *AppError) bool {
	return e.Kind != Collaborator
}

func New(kind Kind, source string, msg string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Source:  source,
		Message: msg,
		Err:     err,
	}
}
