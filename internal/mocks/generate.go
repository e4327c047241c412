// Package mocks provides mock implementations for testing the campus portal.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository and port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
// Hand-written in-memory fakes for the auth ports live in the auth subpackage.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockProfileRepository(ctrl)
//	mockRepo.EXPECT().GetByUserID(gomock.Any(), "u1").Return(profile, nil)
package mocks

// Generate mock for ProfileRepository interface from internal/core package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// GetByUserID, GetByEmail, Ensure, Update, List, CountByRole, CountByStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_repository_mock.go github.com/target/campus-portal/internal/core ProfileRepository

// Generate mock for AccountRepository interface from internal/core package.
// This creates MockAccountRepository with methods for all AccountRepository interface methods:
// Create, GetByEmail, UpdatePassword
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=account_repository_mock.go github.com/target/campus-portal/internal/core AccountRepository

// Generate mock for ContentRepository interface from internal/core package.
// This creates MockContentRepository with methods for all ContentRepository interface methods:
// Upsert, MergeFields, Get, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=content_repository_mock.go github.com/target/campus-portal/internal/core ContentRepository

// Generate mock for ObjectStorage interface from internal/core package.
// This creates MockObjectStorage with methods for all ObjectStorage interface methods:
// Put, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=object_storage_mock.go github.com/target/campus-portal/internal/core ObjectStorage

// Generate mocks for the auth ports from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_verifier_mock.go github.com/target/campus-portal/internal/ports CredentialVerifier
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/target/campus-portal/internal/ports SessionStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_notifier_mock.go github.com/target/campus-portal/internal/ports SessionNotifier
