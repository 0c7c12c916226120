package cloudjack

import (
	"errors"
	"fmt"
)

// ErrorKind is a provider-agnostic error category. Retry decisions and
// caller branching are made on kinds only.
type ErrorKind string

const (
	// KindConfig indicates invalid or incomplete configuration. Raised at
	// construction time only.
	KindConfig ErrorKind = "config"
	// KindUnsupportedProvider indicates the provider is not registered.
	KindUnsupportedProvider ErrorKind = "unsupported_provider"
	// KindUnsupportedService indicates the service is not registered for the provider.
	KindUnsupportedService ErrorKind = "unsupported_service"
	// KindNotFound indicates a resource does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindAlreadyExists indicates a resource already exists.
	KindAlreadyExists ErrorKind = "already_exists"
	// KindPermissionDenied indicates the caller is not allowed to perform the operation.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindInvalidArgument indicates the request was malformed or rejected.
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindThrottled indicates the provider is rate limiting the caller.
	KindThrottled ErrorKind = "throttled"
	// KindUnavailable indicates a transient provider or network failure.
	KindUnavailable ErrorKind = "unavailable"
	// KindCancelled indicates the caller abandoned the operation.
	KindCancelled ErrorKind = "cancelled"
	// KindUnknown is the catch-all for unclassified failures.
	KindUnknown ErrorKind = "unknown"
)

// Error is the single error type surfaced by every wrapped operation.
//
// Kind is the general category. Domain and Resource carry the
// domain-specific detail, so a missing bucket is Kind=not_found,
// Resource=bucket. ProviderMessage keeps the native message for
// diagnostics; the native error value itself is not retained.
type Error struct {
	// Kind classifies the error.
	Kind ErrorKind

	// Domain is the service domain the operation belongs to.
	Domain ServiceName

	// Resource is the kind of resource involved.
	Resource ResourceKind

	// ResourceID is the identifier of the resource involved.
	ResourceID string

	// Operation is the operation that failed.
	Operation string

	// Message is a human-readable error message.
	Message string

	// ProviderMessage is the provider's own description of the failure.
	ProviderMessage string

	// Cause is a non-provider underlying error, such as context.Canceled
	// or a configuration parse failure.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Resource != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.Kind, e.Resource, e.Message)
	}
	switch {
	case e.ProviderMessage != "" && e.ProviderMessage != e.Message:
		msg = fmt.Sprintf("%s: %s", msg, e.ProviderMessage)
	case e.Cause != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same kind. When target also names a
// resource, the resource must match too, which lets leaf sentinels such
// as ErrBucketNotFound match only bucket failures while ErrNotFound
// matches all of them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Resource == "" || t.Resource == e.Resource
}

// Leaf returns the domain leaf name of the error, e.g. "BucketNotFound".
// It is empty when no resource is set.
func (e *Error) Leaf() string {
	if e.Resource == "" {
		return ""
	}
	return leafName(e.Resource, e.Kind)
}

// NewError creates a new Error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WithDomain sets the service domain.
func (e *Error) WithDomain(d ServiceName) *Error {
	e.Domain = d
	return e
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithResource sets the resource kind and ID.
func (e *Error) WithResource(kind ResourceKind, id string) *Error {
	e.Resource = kind
	e.ResourceID = id
	return e
}

// WithProviderMessage sets the provider's native message.
func (e *Error) WithProviderMessage(msg string) *Error {
	e.ProviderMessage = msg
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Sentinels for errors.Is. They must not be modified or returned directly.
var (
	ErrConfig              = &Error{Kind: KindConfig}
	ErrUnsupportedProvider = &Error{Kind: KindUnsupportedProvider}
	ErrUnsupportedService  = &Error{Kind: KindUnsupportedService}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists}
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrThrottled           = &Error{Kind: KindThrottled}
	ErrUnavailable         = &Error{Kind: KindUnavailable}
	ErrCancelled           = &Error{Kind: KindCancelled}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

// Domain leaf sentinels. Each specializes exactly one general kind.
var (
	ErrSecretNotFound      = &Error{Kind: KindNotFound, Resource: ResourceSecret}
	ErrSecretAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceSecret}

	ErrBucketNotFound      = &Error{Kind: KindNotFound, Resource: ResourceBucket}
	ErrBucketAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceBucket}
	ErrObjectNotFound      = &Error{Kind: KindNotFound, Resource: ResourceObject}

	ErrQueueNotFound      = &Error{Kind: KindNotFound, Resource: ResourceQueue}
	ErrQueueAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceQueue}
	ErrMessageNotFound    = &Error{Kind: KindNotFound, Resource: ResourceMessage}

	ErrInstanceNotFound = &Error{Kind: KindNotFound, Resource: ResourceInstance}

	ErrZoneNotFound      = &Error{Kind: KindNotFound, Resource: ResourceZone}
	ErrZoneAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceZone}
	ErrRecordNotFound    = &Error{Kind: KindNotFound, Resource: ResourceRecord}

	ErrRoleNotFound      = &Error{Kind: KindNotFound, Resource: ResourceRole}
	ErrRoleAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceRole}
	ErrPolicyNotFound    = &Error{Kind: KindNotFound, Resource: ResourcePolicy}

	ErrLogGroupNotFound      = &Error{Kind: KindNotFound, Resource: ResourceLogGroup}
	ErrLogGroupAlreadyExists = &Error{Kind: KindAlreadyExists, Resource: ResourceLogGroup}
)

// KindOf returns the kind of err. A nil error has no kind; any error that
// is not an *Error is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsAlreadyExists reports whether err is an already-exists error.
func IsAlreadyExists(err error) bool { return IsKind(err, KindAlreadyExists) }

// IsPermissionDenied reports whether err is a permission error.
func IsPermissionDenied(err error) bool { return IsKind(err, KindPermissionDenied) }

// IsThrottled reports whether err is a rate-limit error.
func IsThrottled(err error) bool { return IsKind(err, KindThrottled) }

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return IsKind(err, KindConfig) }

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool { return IsKind(err, KindCancelled) }

func leafName(r ResourceKind, k ErrorKind) string {
	return camel(string(r)) + camel(string(k))
}

func camel(s string) string {
	out := make([]byte, 0, len(s))
	upper := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
