package cloudjack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Mapping is the translation target of one native error signal.
type Mapping struct {
	Kind ErrorKind
	// Resource overrides the operation's declared resource, e.g. a
	// missing key during a bucket operation is an object failure.
	Resource ResourceKind
}

// ErrorTable maps native error signals (error codes such as
// "NoSuchBucket", or "http:404" for bare status codes) to taxonomy kinds.
// Tables are static and read-only once built.
type ErrorTable map[string]Mapping

// Merge returns a new table with the entries of t overlaid by others in order.
func (t ErrorTable) Merge(others ...ErrorTable) ErrorTable {
	out := make(ErrorTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Classifier extracts the native signal and message from a provider
// error. It returns ok=false when it does not recognize the error shape.
type Classifier func(err error) (signal, message string, ok bool)

// HTTPSignal is the table signal for a bare HTTP status code.
func HTTPSignal(status int) string {
	return "http:" + strconv.Itoa(status)
}

// HTTPStatusErrors maps common HTTP status signals. Provider tables
// usually merge it underneath their own codes.
var HTTPStatusErrors = ErrorTable{
	HTTPSignal(400): {Kind: KindInvalidArgument},
	HTTPSignal(401): {Kind: KindPermissionDenied},
	HTTPSignal(403): {Kind: KindPermissionDenied},
	HTTPSignal(404): {Kind: KindNotFound},
	HTTPSignal(409): {Kind: KindAlreadyExists},
	HTTPSignal(412): {Kind: KindInvalidArgument},
	HTTPSignal(429): {Kind: KindThrottled},
	HTTPSignal(500): {Kind: KindUnavailable},
	HTTPSignal(502): {Kind: KindUnavailable},
	HTTPSignal(503): {Kind: KindUnavailable},
	HTTPSignal(504): {Kind: KindUnavailable},
}

// Scope describes the operation a translated error is attributed to.
type Scope struct {
	Domain     ServiceName
	Operation  string
	Resource   ResourceKind
	ResourceID string
}

// Translator turns native provider errors into *Error values.
type Translator struct {
	Classify Classifier
	Table    ErrorTable
}

// Translate maps err onto the taxonomy. It is total: nil maps to nil,
// an *Error passes through with missing scope filled in, cancellation
// maps to KindCancelled, an expired per-attempt deadline maps to
// KindUnavailable, and anything unrecognized maps to KindUnknown.
func (t Translator) Translate(err error, scope Scope) (out *Error) {
	if err == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = scoped(&Error{
				Kind:            KindUnknown,
				Message:         describe(KindUnknown, scope.Resource, scope.ResourceID, scope.Operation),
				ProviderMessage: fmt.Sprintf("error classification failed: %v", r),
			}, scope)
		}
	}()

	var e *Error
	if errors.As(err, &e) {
		c := *e
		return scoped(&c, scope)
	}
	if errors.Is(err, context.Canceled) {
		return contextError(KindCancelled, context.Canceled, t.providerMessage(err), scope)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contextError(KindUnavailable, context.DeadlineExceeded, t.providerMessage(err), scope)
	}

	kind := KindUnknown
	resource := scope.Resource
	message := err.Error()
	if t.Classify != nil {
		if signal, msg, ok := t.Classify(err); ok {
			if msg != "" {
				message = msg
			}
			if m, found := t.Table[signal]; found {
				kind = m.Kind
				if m.Resource != "" {
					resource = m.Resource
				}
			}
		}
	}

	out = &Error{
		Kind:            kind,
		Resource:        resource,
		Message:         describe(kind, resource, scope.ResourceID, scope.Operation),
		ProviderMessage: message,
	}
	return scoped(out, scope)
}

// contextError reports a context failure. Cause is the bare sentinel.
func contextError(kind ErrorKind, sentinel error, providerMessage string, scope Scope) *Error {
	return scoped(&Error{
		Kind:            kind,
		Message:         describe(kind, scope.Resource, scope.ResourceID, scope.Operation),
		ProviderMessage: providerMessage,
		Cause:           sentinel,
	}, scope)
}

// providerMessage returns the native text of err wrapping a context error,
// or "" when err is the bare sentinel.
func (t Translator) providerMessage(err error) string {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return ""
	}
	if t.Classify != nil {
		if _, msg, ok := t.Classify(err); ok && msg != "" {
			return msg
		}
	}
	return err.Error()
}

func scoped(e *Error, s Scope) *Error {
	if e.Domain == "" {
		e.Domain = s.Domain
	}
	if e.Operation == "" {
		e.Operation = s.Operation
	}
	if e.Resource == "" {
		e.Resource = s.Resource
	}
	if e.ResourceID == "" {
		e.ResourceID = s.ResourceID
	}
	return e
}

func describe(kind ErrorKind, resource ResourceKind, id, op string) string {
	if op == "" {
		op = "operation"
	}
	subject := string(resource)
	if subject == "" {
		subject = "resource"
	}
	if id != "" {
		subject = fmt.Sprintf("%s %q", subject, id)
	}
	switch kind {
	case KindNotFound:
		return subject + " not found"
	case KindAlreadyExists:
		return subject + " already exists"
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied for %s on %s", op, subject)
	case KindInvalidArgument:
		return fmt.Sprintf("invalid request for %s on %s", op, subject)
	case KindThrottled:
		return fmt.Sprintf("%s throttled", op)
	case KindUnavailable:
		return fmt.Sprintf("%s unavailable", op)
	case KindCancelled:
		return fmt.Sprintf("%s cancelled", op)
	}
	return fmt.Sprintf("%s failed", op)
}
