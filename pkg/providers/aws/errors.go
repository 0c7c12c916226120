package aws

import (
	"net"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// signalNetwork is the signal for requests that never got a response.
const signalNetwork = "network"

// Classify extracts the error code and message from an SDK error.
func Classify(err error) (signal, message string, ok bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode(), apiErr.ErrorMessage(), true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return cloudjack.HTTPSignal(respErr.HTTPStatusCode()), respErr.Error(), true
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return signalNetwork, sendErr.Error(), true
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

// Errors is the code table shared by every AWS service.
var Errors = cloudjack.HTTPStatusErrors.Merge(cloudjack.ErrorTable{
	signalNetwork: kind(cloudjack.KindUnavailable),

	"Throttling":                             kind(cloudjack.KindThrottled),
	"ThrottlingException":                    kind(cloudjack.KindThrottled),
	"ThrottledException":                     kind(cloudjack.KindThrottled),
	"TooManyRequestsException":               kind(cloudjack.KindThrottled),
	"RequestLimitExceeded":                   kind(cloudjack.KindThrottled),
	"RequestThrottled":                       kind(cloudjack.KindThrottled),
	"RequestThrottledException":              kind(cloudjack.KindThrottled),
	"SlowDown":                               kind(cloudjack.KindThrottled),
	"ProvisionedThroughputExceededException": kind(cloudjack.KindThrottled),

	"InternalError":               kind(cloudjack.KindUnavailable),
	"InternalFailure":             kind(cloudjack.KindUnavailable),
	"InternalServerError":         kind(cloudjack.KindUnavailable),
	"InternalServiceError":        kind(cloudjack.KindUnavailable),
	"ServiceUnavailable":          kind(cloudjack.KindUnavailable),
	"ServiceUnavailableException": kind(cloudjack.KindUnavailable),
	"RequestTimeout":              kind(cloudjack.KindUnavailable),
	"RequestTimeoutException":     kind(cloudjack.KindUnavailable),

	"AccessDenied":                kind(cloudjack.KindPermissionDenied),
	"AccessDeniedException":       kind(cloudjack.KindPermissionDenied),
	"AuthFailure":                 kind(cloudjack.KindPermissionDenied),
	"ExpiredToken":                kind(cloudjack.KindPermissionDenied),
	"ExpiredTokenException":       kind(cloudjack.KindPermissionDenied),
	"InvalidAccessKeyId":          kind(cloudjack.KindPermissionDenied),
	"InvalidClientTokenId":        kind(cloudjack.KindPermissionDenied),
	"SignatureDoesNotMatch":       kind(cloudjack.KindPermissionDenied),
	"UnauthorizedOperation":       kind(cloudjack.KindPermissionDenied),
	"UnrecognizedClientException": kind(cloudjack.KindPermissionDenied),

	"InvalidInput":                kind(cloudjack.KindInvalidArgument),
	"InvalidParameter":            kind(cloudjack.KindInvalidArgument),
	"InvalidParameterCombination": kind(cloudjack.KindInvalidArgument),
	"InvalidParameterException":   kind(cloudjack.KindInvalidArgument),
	"InvalidParameterValue":       kind(cloudjack.KindInvalidArgument),
	"InvalidRequestException":     kind(cloudjack.KindInvalidArgument),
	"MissingParameter":            kind(cloudjack.KindInvalidArgument),
	"ValidationError":             kind(cloudjack.KindInvalidArgument),
	"ValidationException":         kind(cloudjack.KindInvalidArgument),
})

// SecretsErrors are the Secrets Manager codes.
var SecretsErrors = cloudjack.ErrorTable{
	"ResourceNotFoundException": leaf(cloudjack.KindNotFound, cloudjack.ResourceSecret),
	"ResourceExistsException":   leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceSecret),
	"DecryptionFailure":         leaf(cloudjack.KindPermissionDenied, cloudjack.ResourceSecret),
}

// StorageErrors are the S3 codes.
var StorageErrors = cloudjack.ErrorTable{
	"NoSuchBucket":            leaf(cloudjack.KindNotFound, cloudjack.ResourceBucket),
	"NoSuchKey":               leaf(cloudjack.KindNotFound, cloudjack.ResourceObject),
	"NotFound":                leaf(cloudjack.KindNotFound, cloudjack.ResourceObject),
	"BucketAlreadyExists":     leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceBucket),
	"BucketAlreadyOwnedByYou": leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceBucket),
	"BucketNotEmpty":          leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceBucket),
	"InvalidBucketName":       leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceBucket),
}

// QueueErrors are the SQS codes, both the query-protocol and JSON-protocol forms.
var QueueErrors = cloudjack.ErrorTable{
	"AWS.SimpleQueueService.NonExistentQueue": leaf(cloudjack.KindNotFound, cloudjack.ResourceQueue),
	"QueueDoesNotExist":                       leaf(cloudjack.KindNotFound, cloudjack.ResourceQueue),
	"QueueAlreadyExists":                      leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceQueue),
	"QueueNameExists":                         leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceQueue),
	"ReceiptHandleIsInvalid":                  leaf(cloudjack.KindNotFound, cloudjack.ResourceMessage),
	"InvalidIdFormat":                         leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceMessage),

	"AWS.SimpleQueueService.QueueDeletedRecently": leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceQueue),
}

// ComputeErrors are the EC2 codes.
var ComputeErrors = cloudjack.ErrorTable{
	"InvalidInstanceID.NotFound":   leaf(cloudjack.KindNotFound, cloudjack.ResourceInstance),
	"InvalidInstanceID.Malformed":  leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceInstance),
	"IncorrectInstanceState":       leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceInstance),
	"InvalidAMIID.NotFound":        kind(cloudjack.KindInvalidArgument),
	"InvalidAMIID.Malformed":       kind(cloudjack.KindInvalidArgument),
	"InsufficientInstanceCapacity": kind(cloudjack.KindUnavailable),
}

// DNSErrors are the Route 53 codes.
var DNSErrors = cloudjack.ErrorTable{
	"NoSuchHostedZone":        leaf(cloudjack.KindNotFound, cloudjack.ResourceZone),
	"HostedZoneAlreadyExists": leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceZone),
	"ConflictingDomainExists": leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceZone),
	"HostedZoneNotEmpty":      leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceZone),
	"InvalidDomainName":       leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceZone),
	"InvalidChangeBatch":      leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceRecord),
	"PriorRequestNotComplete": kind(cloudjack.KindThrottled),
}

// IAMErrors are the IAM codes. NoSuchEntity keeps the operation's own
// resource, so it reads as a missing role or a missing policy.
var IAMErrors = cloudjack.ErrorTable{
	"NoSuchEntity":            kind(cloudjack.KindNotFound),
	"EntityAlreadyExists":     leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceRole),
	"MalformedPolicyDocument": kind(cloudjack.KindInvalidArgument),
	"DeleteConflict":          leaf(cloudjack.KindInvalidArgument, cloudjack.ResourceRole),
	"LimitExceeded":           kind(cloudjack.KindInvalidArgument),
}

// LoggingErrors are the CloudWatch Logs codes.
var LoggingErrors = cloudjack.ErrorTable{
	"ResourceNotFoundException":      leaf(cloudjack.KindNotFound, cloudjack.ResourceLogGroup),
	"ResourceAlreadyExistsException": leaf(cloudjack.KindAlreadyExists, cloudjack.ResourceLogGroup),
	"InvalidSequenceTokenException":  kind(cloudjack.KindUnavailable),
}
