package errors

import "fmt"

// MalformedParameter reports a query parameter whose operator or value could
// not be parsed. The raw value is always echoed back.
func MalformedParameter(param string, value string, reason string) error {
	msg := fmt.Sprintf("malformed query param %q=%q", param, value)
	if reason != "" {
		msg += ": " + reason
	}
	return New(ErrMalformedParameter, msg)
}

func UnknownParameter(param string) error {
	return Newf(ErrUnknownParameter, "unknown query param %q", param)
}

// UnresolvedReference reports a study/sample/file/cohort/gene name that could
// not be mapped to a stable id.
func UnresolvedReference(kind string, name string) error {
	return Newf(ErrUnresolvedReference, "%s %q not found", kind, name)
}

func BackendUnavailable(backend string, err error) error {
	return Wrapf(New(ErrBackendUnavailable, err.Error()), "%s unavailable", backend)
}

func Timeout(op string, limit fmt.Stringer) error {
	return Newf(ErrTimeout, "%s exceeded timeout of %s", op, limit)
}

func UnsupportedOperation(backend string, op string) error {
	return Newf(ErrUnsupportedOperation, "%s is not supported by the %s backend", op, backend)
}

// UniquenessViolation is raised by a conditional create when the (variant,
// study) pair already exists. It never leaves the bulk loader.
func UniquenessViolation(key string, studyId int) error {
	return Newf(ErrUniquenessViolation, "variant %s already has study %d", key, studyId)
}

// BatchAborted wraps a non-uniqueness failure raised while loading a batch so
// the caller can retry the whole batch.
func BatchAborted(err error, phase int, key string) error {
	return Wrapf(New(ErrBatchAborted, err.Error()), "batch aborted in phase %d at variant %s", phase, key)
}
