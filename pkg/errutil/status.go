package errutil

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// CoreStatus is the transport-neutral error class carried by BaseError.
type CoreStatus string

const (
	StatusUnknown             CoreStatus = "UNKNOWN"
	StatusBadRequest          CoreStatus = "BAD_REQUEST"
	StatusValidationFailed    CoreStatus = "VALIDATION_FAILED"
	StatusUnauthorized        CoreStatus = "UNAUTHORIZED"
	StatusForbidden           CoreStatus = "FORBIDDEN"
	StatusNotFound            CoreStatus = "NOT_FOUND"
	StatusConflict            CoreStatus = "CONFLICT"
	StatusTooManyRequests     CoreStatus = "TOO_MANY_REQUESTS"
	StatusClientClosedRequest CoreStatus = "CLIENT_CLOSED_REQUEST"
	StatusTimeout             CoreStatus = "TIMEOUT"
	StatusServiceUnavailable  CoreStatus = "SERVICE_UNAVAILABLE"
	StatusInternal            CoreStatus = "INTERNAL"
)

type mapping struct {
	http int
	grpc codes.Code
}

var mappings = map[CoreStatus]mapping{
	StatusBadRequest:          {http.StatusBadRequest, codes.InvalidArgument},
	StatusValidationFailed:    {http.StatusBadRequest, codes.InvalidArgument},
	StatusUnauthorized:        {http.StatusUnauthorized, codes.Unauthenticated},
	StatusForbidden:           {http.StatusForbidden, codes.PermissionDenied},
	StatusNotFound:            {http.StatusNotFound, codes.NotFound},
	StatusConflict:            {http.StatusConflict, codes.AlreadyExists},
	StatusTooManyRequests:     {http.StatusTooManyRequests, codes.ResourceExhausted},
	StatusClientClosedRequest: {499, codes.Canceled},
	StatusTimeout:             {http.StatusGatewayTimeout, codes.DeadlineExceeded},
	StatusServiceUnavailable:  {http.StatusServiceUnavailable, codes.Unavailable},
	StatusInternal:            {http.StatusInternalServerError, codes.Internal},
}

func (s CoreStatus) lookup() mapping {
	if m, ok := mappings[s]; ok {
		return m
	}
	return mapping{http.StatusInternalServerError, codes.Unknown}
}

// HTTPStatus is the status code written on the wire for s.
func (s CoreStatus) HTTPStatus() int { return s.lookup().http }

// GRPCCode is the closest gRPC code for s.
func (s CoreStatus) GRPCCode() codes.Code { return s.lookup().grpc }
