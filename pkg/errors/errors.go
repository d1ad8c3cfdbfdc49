// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. The segment after
// the last dot is the error's reason; the classification helpers below match
// on that reason so new codes classify without new helpers.
type Code string

const (
	CodeStorageObjectNotFound     Code = "storage.object.not_found"
	CodeStorageBackendUnsupported Code = "storage.backend.unsupported"
	CodeStorageConnectionFailure  Code = "storage.backend.connection_failure"
	CodeStorageAdapterClosed      Code = "storage.adapter.closed"
	CodeStoragePathInvalid        Code = "storage.path.invalid_input"

	CodeMetadataDocumentNotFound  Code = "metadata.document.not_found"
	CodeMetadataDocumentConflict  Code = "metadata.document.conflict"
	CodeMetadataDocumentInvalid   Code = "metadata.document.invalid_input"
	CodeMetadataConnectionFailure Code = "metadata.backend.connection_failure"
	CodeMetadataAdapterClosed     Code = "metadata.adapter.closed"

	CodeVectorDimensionMismatch Code = "vector.shape.dimension_mismatch"
	CodeVectorRecordNotFound    Code = "vector.record.not_found"
	CodeVectorQueryInvalid      Code = "vector.query.invalid_input"
	CodeVectorConnectionFailure Code = "vector.backend.connection_failure"
	CodeVectorAdapterClosed     Code = "vector.adapter.closed"

	CodeFilterOperatorUnsupported Code = "filter.operator.unsupported"

	CodeBackendUnknown Code = "adapter.backend.unknown_backend"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodePipelineStageInvalid   Code = "pipeline.stage.invalid_input"
	CodePipelineStrategyFrozen Code = "pipeline.strategy.frozen"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid_input"
	CodeInternalFailure Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldID(value string) Attr {
	return Field("id", value)
}

func FieldStage(value string) Attr {
	return Field("stage", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, preserving its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsNotFound reports whether the referenced path, document, or record is absent.
func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsUnsupported reports whether the operation is invalid for the backend,
// e.g. a write against read-only storage.
func IsUnsupported(err error) bool {
	return reason(CodeOf(err)) == "unsupported"
}

// IsConnectionFailure reports whether the backend was unreachable or refused
// authentication.
func IsConnectionFailure(err error) bool {
	return reason(CodeOf(err)) == "connection_failure"
}

// IsDimensionMismatch reports whether a vector's shape disagrees with the
// adapter's configured dimension.
func IsDimensionMismatch(err error) bool {
	return reason(CodeOf(err)) == "dimension_mismatch"
}

// IsClosed reports whether the operation ran against a released adapter.
func IsClosed(err error) bool {
	return reason(CodeOf(err)) == "closed"
}

// IsConfigurationError reports whether adapter construction was given an
// invalid configuration, including an unknown backend identity.
func IsConfigurationError(err error) bool {
	code := CodeOf(err)
	if reason(code) == "unknown_backend" {
		return true
	}
	return strings.HasPrefix(string(code), "config.")
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func Join(errs ...error) error {
	return oops.Code(CodeInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
