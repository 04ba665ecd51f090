package fiscal

import (
	"fmt"

	apperrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

// Device error registers. Read through the "#n" query; "E0" means the
// last command completed cleanly.
const (
	errCodeNone     = 0
	errCodeChecksum = 2
	errCodeParam    = 4
	errCodePaper    = 7
	errCodeMech     = 8
)

// FailureKind classifies a device failure for retry policy.
type FailureKind int

const (
	// FailureTransientIo: resend the whole frame once.
	FailureTransientIo FailureKind = iota
	// FailureChecksumRejected: recompute and resend once.
	FailureChecksumRejected
	// FailureDeviceBusy: the caller decides to wait or cancel.
	FailureDeviceBusy
	// FailurePaperOut: operator action required, no retry.
	FailurePaperOut
	// FailureMechanismError: operator action required, no retry.
	FailureMechanismError
	// FailureProtocolFatal: escalate, device needs intervention.
	FailureProtocolFatal
	// FailureTimeout: the receipt deadline expired mid-operation.
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransientIo:
		return "transient_io"
	case FailureChecksumRejected:
		return "checksum_rejected"
	case FailureDeviceBusy:
		return "device_busy"
	case FailurePaperOut:
		return "paper_out"
	case FailureMechanismError:
		return "mechanism_error"
	case FailureProtocolFatal:
		return "protocol_fatal"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// retryable reports whether the send loop may resend the frame once.
func (k FailureKind) retryable() bool {
	return k == FailureTransientIo || k == FailureChecksumRejected
}

// DeviceError carries the classified failure plus diagnostic context for
// the operator: the error register and the parsed status bits.
type DeviceError struct {
	Kind      FailureKind
	ErrorCode int
	Status    *Status
	Op        string
	cause     error
}

func (e *DeviceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("fiscal %s: %s (E%d): %v", e.Op, e.Kind, e.ErrorCode, e.cause)
	}
	return fmt.Sprintf("fiscal %s: %s (E%d)", e.Op, e.Kind, e.ErrorCode)
}

func (e *DeviceError) Unwrap() error {
	return e.cause
}

func newDeviceError(op string, kind FailureKind, code int, status *Status, cause error) *DeviceError {
	return &DeviceError{Kind: kind, ErrorCode: code, Status: status, Op: op, cause: cause}
}

// classifyErrorCode maps the device register to a failure kind.
func classifyErrorCode(code int) FailureKind {
	switch code {
	case errCodeChecksum:
		return FailureChecksumRejected
	case errCodeParam:
		return FailureProtocolFatal
	case errCodePaper:
		return FailurePaperOut
	case errCodeMech:
		return FailureMechanismError
	default:
		return FailureTransientIo
	}
}

// AsAppError converts a device error to the service error taxonomy. The
// diagnostic details travel with it so the HTTP layer can surface them.
func AsAppError(err error) error {
	devErr, ok := err.(*DeviceError)
	if !ok {
		return apperrors.Wrap(apperrors.CodeFiscalTransient, err, "fiscal device failure")
	}

	details := map[string]any{
		"kind":       devErr.Kind.String(),
		"error_code": fmt.Sprintf("E%d", devErr.ErrorCode),
	}
	if devErr.Status != nil {
		details["status"] = *devErr.Status
	}

	var code apperrors.Code
	switch devErr.Kind {
	case FailureTimeout:
		code = apperrors.CodeFiscalTimeout
	case FailurePaperOut, FailureMechanismError, FailureProtocolFatal:
		code = apperrors.CodeFiscalFatal
	default:
		code = apperrors.CodeFiscalTransient
	}
	return apperrors.Wrap(code, devErr, "fiscal device failure").WithDetails(details)
}
