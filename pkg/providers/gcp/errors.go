package gcp

import (
	"net"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/juju/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/status"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Signals for errors that carry no status code.
const (
	signalNetwork        = "network"
	signalBucketNotExist = "storage:bucket_not_exist"
	signalObjectNotExist = "storage:object_not_exist"
)

// GRPCSignal is the table signal for a gRPC status code name, e.g.
// "grpc:NotFound".
func GRPCSignal(code string) string {
	return "grpc:" + code
}

// Classify extracts a signal and message from a Google client library
// error. REST errors yield their first reason when the table knows it and
// their HTTP status otherwise; gRPC errors yield their status code.
func Classify(err error) (signal, message string, ok bool) {
	switch {
	case errors.Is(err, storage.ErrBucketNotExist):
		return signalBucketNotExist, storage.ErrBucketNotExist.Error(), true
	case errors.Is(err, storage.ErrObjectNotExist):
		return signalObjectNotExist, storage.ErrObjectNotExist.Error(), true
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" {
			msg = gErr.Error()
		}
		for _, item := range gErr.Errors {
			if knownReason(item.Reason) {
				return item.Reason, msg, true
			}
		}
		return cloudjack.HTTPSignal(gErr.Code), msg, true
	}

	if ae, isAPI := apierror.FromError(err); isAPI {
		if reason := ae.Reason(); reason != "" {
			if knownReason(reason) {
				return reason, ae.Error(), true
			}
		}
		if st := ae.GRPCStatus(); st != nil {
			return GRPCSignal(st.Code().String()), st.Message(), true
		}
		if code := ae.HTTPCode(); code > 0 {
			return cloudjack.HTTPSignal(code), ae.Error(), true
		}
	}

	if st, isStatus := status.FromError(err); isStatus {
		return GRPCSignal(st.Code().String()), st.Message(), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return signalNetwork, urlErr.Error(), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return signalNetwork, netErr.Error(), true
	}
	return "", "", false
}

func kind(k cloudjack.ErrorKind) cloudjack.Mapping {
	return cloudjack.Mapping{Kind: k}
}

func leaf(k cloudjack.ErrorKind, r cloudjack.ResourceKind) cloudjack.Mapping {
	return cloudjack.Mapping{Kind: k, Resource: r}
}

// Errors is the signal table shared by every GCP service.
var Errors = cloudjack.HTTPStatusErrors.Merge(cloudjack.ErrorTable{
	signalNetwork: kind(cloudjack.KindUnavailable),

	GRPCSignal("NotFound"):           kind(cloudjack.KindNotFound),
	GRPCSignal("AlreadyExists"):      kind(cloudjack.KindAlreadyExists),
	GRPCSignal("PermissionDenied"):   kind(cloudjack.KindPermissionDenied),
	GRPCSignal("Unauthenticated"):    kind(cloudjack.KindPermissionDenied),
	GRPCSignal("InvalidArgument"):    kind(cloudjack.KindInvalidArgument),
	GRPCSignal("FailedPrecondition"): kind(cloudjack.KindInvalidArgument),
	GRPCSignal("OutOfRange"):         kind(cloudjack.KindInvalidArgument),
	GRPCSignal("ResourceExhausted"):  kind(cloudjack.KindThrottled),
	GRPCSignal("Unavailable"):        kind(cloudjack.KindUnavailable),
	GRPCSignal("DeadlineExceeded"):   kind(cloudjack.KindUnavailable),
	GRPCSignal("Aborted"):            kind(cloudjack.KindUnavailable),
	GRPCSignal("Internal"):           kind(cloudjack.KindUnavailable),
	GRPCSignal("Canceled"):           kind(cloudjack.KindCancelled),

	"rateLimitExceeded":       kind(cloudjack.KindThrottled),
	"userRateLimitExceeded":   kind(cloudjack.KindThrottled),
	"quotaExceeded":           kind(cloudjack.KindThrottled),
	"RATE_LIMIT_EXCEEDED":     kind(cloudjack.KindThrottled),
	"backendError":            kind(cloudjack.KindUnavailable),
	"internalError":           kind(cloudjack.KindUnavailable),
	"notFound":                kind(cloudjack.KindNotFound),
	"alreadyExists":           kind(cloudjack.KindAlreadyExists),
	"duplicate":               kind(cloudjack.KindAlreadyExists),
	"forbidden":               kind(cloudjack.KindPermissionDenied),
	"insufficientPermissions": kind(cloudjack.KindPermissionDenied),
	"invalid":                 kind(cloudjack.KindInvalidArgument),
	"required":                kind(cloudjack.KindInvalidArgument),
	"badRequest":              kind(cloudjack.KindInvalidArgument),
})

// SecretsErrors are the Secret Manager overrides. FailedPrecondition
// means the version is disabled or destroyed.
var SecretsErrors = cloudjack.ErrorTable{
	GRPCSignal("FailedPrecondition"): leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceSecret),
}

// StorageErrors are the Cloud Storage overrides.
var StorageErrors = cloudjack.ErrorTable{
	signalBucketNotExist:      leaf(cloudjack.KindNotFound, cloudjack.ResourceBucket),
	signalObjectNotExist:      leaf(cloudjack.KindNotFound, cloudjack.ResourceObject),
	"conflict":                leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceBucket),
	cloudjack.HTTPSignal(409): leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceBucket),
}

// QueueErrors are the Pub/Sub overrides.
var QueueErrors = cloudjack.ErrorTable{
	GRPCSignal("NotFound"):      leaf(cloudjack.KindNotFound, cloudjack.ResourceQueue),
	GRPCSignal("AlreadyExists"): leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceQueue),
}

// ComputeErrors are the Compute Engine overrides.
var ComputeErrors = cloudjack.ErrorTable{
	"ZONE_RESOURCE_POOL_EXHAUSTED": kind(cloudjack.KindUnavailable),
	"resourceNotReady":             kind(cloudjack.KindUnavailable),

	"resourceInUseByAnotherResource": kind(cloudjack.KindInvalidArgument),
}

// DNSErrors are the Cloud DNS overrides.
var DNSErrors = cloudjack.ErrorTable{
	"containerNotEmpty": leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceZone),
}

// IAMErrors are the IAM and Resource Manager overrides. Aborted is an
// etag conflict with a concurrent policy writer.
var IAMErrors = cloudjack.ErrorTable{
	"aborted": kind(cloudjack.KindUnavailable),
}

// LoggingErrors are the Cloud Logging overrides.
var LoggingErrors = cloudjack.ErrorTable{
	GRPCSignal("NotFound"): leaf(cloudjack.KindNotFound, cloudjack.ResourceLogGroup),
}

// knownReason reports whether some table maps reason.
func knownReason(reason string) bool {
	for _, t := range []cloudjack.ErrorTable{
		Errors, SecretsErrors, StorageErrors, QueueErrors,
		ComputeErrors, DNSErrors, IAMErrors, LoggingErrors,
	} {
		if _, ok := t[reason]; ok {
			return true
		}
	}
	return false
}
