package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	apperrors "github.com/target/campus-portal/internal/errors"
)

var sentinelClasses = []struct {
	err   error
	class string
}{
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
	{domainauth.ErrInvalidCredentials, "invalid_credentials"},
	{domainauth.ErrAccountSuspended, "account_suspended"},
	{domainauth.ErrSessionNotFound, "session_not_found"},
	{domainauth.ErrProfileNotFound, "profile_not_found"},
}

// Classify returns a short label for err suitable for tagging metrics and logs.
// Known sentinels and AppError codes win; anything else is named after the
// innermost concrete error type.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinelClasses {
		if goerrors.Is(err, s.err) {
			return s.class
		}
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return typeName(err)
}

func typeName(err error) string {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
