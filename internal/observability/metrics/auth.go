// Package metrics maps campus domain events onto StatsD metrics.
package metrics

import (
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	obserrors "github.com/target/campus-portal/internal/observability/errors"
	"github.com/target/campus-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// SignInMetric captures the outcome of one sign-in attempt.
type SignInMetric struct {
	Duration time.Duration
	Err      error
}

// EmitSignIn records a sign-in attempt. Credential and suspension failures are
// "rejected"; everything else that fails is "error".
func EmitSignIn(sink statsd.Sink, in SignInMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": signInResult(in.Err)}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("auth.sign_in", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.sign_in.duration", in.Duration, CloneTags(tags))
	}
}

func signInResult(err error) string {
	switch obserrors.Classify(err) {
	case "":
		return ResultSuccess
	case "invalid_credentials", "account_suspended":
		return ResultRejected
	default:
		return ResultError
	}
}

// EmitSessionEvent counts a published session change.
func EmitSessionEvent(sink statsd.Sink, ev domainauth.SessionEvent) {
	if sink == nil {
		return
	}
	sink.Count("auth.session_event", 1, map[string]string{"event": string(ev)})
}

// UploadMetric captures the outcome of one upload.
type UploadMetric struct {
	Folder   string
	Size     int64
	Duration time.Duration
	Err      error
}

// EmitUpload records an upload attempt and, on success, its size.
func EmitUpload(sink statsd.Sink, in UploadMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"folder": in.Folder, "result": ResultSuccess}
	if in.Err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("upload.request", 1, tags)
	if in.Err == nil && in.Size > 0 {
		sink.Count("upload.bytes", in.Size, map[string]string{"folder": in.Folder})
	}
	if in.Duration > 0 {
		sink.Timing("upload.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
