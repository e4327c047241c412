package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	apperrors "github.com/target/campus-portal/internal/errors"
)

type recorded struct {
	kind  string
	name  string
	value int64
	tags  map[string]string
}

type recordingSink struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{kind: "count", name: name, value: value, tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{kind: "timing", name: name, value: int64(value), tags: tags})
}

func TestEmitSignIn(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
		class  string
	}{
		{"success", nil, ResultSuccess, ""},
		{"bad password", domainauth.ErrInvalidCredentials, ResultRejected, "invalid_credentials"},
		{"suspended", domainauth.ErrAccountSuspended, ResultRejected, "account_suspended"},
		{"store down", errors.New("boom"), ResultError, "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			EmitSignIn(sink, SignInMetric{Duration: time.Millisecond, Err: tt.err})

			require.Len(t, sink.seen, 2)
			assert.Equal(t, "auth.sign_in", sink.seen[0].name)
			assert.Equal(t, tt.result, sink.seen[0].tags["result"])
			assert.Equal(t, tt.class, sink.seen[0].tags["error_class"])
			assert.Equal(t, "timing", sink.seen[1].kind)
		})
	}
}

func TestEmitUpload(t *testing.T) {
	sink := &recordingSink{}
	EmitUpload(sink, UploadMetric{Folder: "branding", Size: 2048})
	require.Len(t, sink.seen, 2)
	assert.Equal(t, recorded{kind: "count", name: "upload.bytes", value: 2048, tags: map[string]string{"folder": "branding"}}, sink.seen[1])

	sink = &recordingSink{}
	EmitUpload(sink, UploadMetric{Folder: "docs", Err: apperrors.ValidationField("file", "file is empty")})
	require.Len(t, sink.seen, 1)
	assert.Equal(t, "validation", sink.seen[0].tags["error_class"])
}

func TestEmit_NilSink(t *testing.T) {
	EmitSignIn(nil, SignInMetric{})
	EmitSessionEvent(nil, domainauth.EventSignedIn)
	EmitUpload(nil, UploadMetric{})
}

func TestEmitSessionEvent(t *testing.T) {
	sink := &recordingSink{}
	EmitSessionEvent(sink, domainauth.EventTokenRefreshed)
	require.Len(t, sink.seen, 1)
	assert.Equal(t, string(domainauth.EventTokenRefreshed), sink.seen[0].tags["event"])
}
