package hostconnect

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrMissingCredentials = errors.New("hostconnect: agent credentials missing")
	ErrReplyShapeMismatch = errors.New("hostconnect: reply missing expected node")
)

// Upstream error codes carried verbatim in ErrorReply text.
const (
	CodeGeneralError    = "1000"
	CodeMissingInput    = "1001"
	CodeIllegalInput    = "1002"
	CodeCommsError      = "1003"
	CodeBookingNotFound = "1050"
	CodeAgentAuthFailed = "1051"
	CodeOptionNotFound  = "1052"
)

// BusinessError is an explicit rejection by the upstream: a well-formed
// ErrorReply document. It is never retried and carries the upstream's
// code and text verbatim.
type BusinessError struct {
	Code string
	Text string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("hostconnect: upstream rejected request: %s %s", e.Code, e.Text)
}

// ShapeError wraps ErrReplyShapeMismatch with the reply kind that was
// expected and the raw payload for diagnosis.
type ShapeError struct {
	Expected ReplyKind
	Raw      string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("hostconnect: expected %s node: %v", e.Expected, ErrReplyShapeMismatch)
}

func (e *ShapeError) Unwrap() error {
	return ErrReplyShapeMismatch
}

// splitErrorText separates the leading numeric code from ErrorReply text
// such as "1052 SCN System.Option not found".
func splitErrorText(text string) (code, rest string) {
	trimmed := strings.TrimSpace(text)
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 {
		return CodeGeneralError, trimmed
	}
	return trimmed[:i], strings.TrimSpace(trimmed[i:])
}
