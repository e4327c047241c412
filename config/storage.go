package config

import (
	"strings"
	"time"
)

// StorageConfig configures the S3-compatible bucket that receives uploads.
type StorageConfig struct {
	Bucket          string        `env:"BUCKET"`
	Region          string        `env:"REGION"            envDefault:"us-east-1"`
	Endpoint        string        `env:"ENDPOINT"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	ForcePathStyle  bool          `env:"FORCE_PATH_STYLE"  envDefault:"false"`
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL"`
	UploadTimeout   time.Duration `env:"UPLOAD_TIMEOUT"    envDefault:"30s"`

	// MaxUploadBytes is the largest file accepted by POST /api/upload.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// AllowedTypes are media types or "type/*" patterns accepted for upload.
	AllowedTypes []string `env:"ALLOWED_TYPES" envDefault:"image/*,application/pdf" envSeparator:","`
}

// Enabled reports whether uploads can be served.
func (s *StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	s.Bucket = strings.TrimSpace(s.Bucket)
	s.PublicBaseURL = strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = 10 << 20
	}
	types := s.AllowedTypes[:0]
	for _, t := range s.AllowedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	s.AllowedTypes = types
}
