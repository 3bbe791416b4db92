package resilience

import (
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// classifyProvider inspects the typed errors returned by the provider SDKs.
func classifyProvider(err error) (Class, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.StatusCode), true
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return ClassifyStatus(gErr.Code), true
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable:
			return ClassRateLimited, true
		case codes.DeadlineExceeded:
			return ClassTimeout, true
		case codes.Unknown:
			return ClassPermanent, false
		default:
			return ClassPermanent, true
		}
	}
	return ClassPermanent, false
}
