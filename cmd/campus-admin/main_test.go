package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/campus-portal/config"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
)

func TestPrintUsage_ListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	out := buf.String()
	for name := range commands() {
		assert.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "create-account"), strings.Index(out, "set-role"), "commands are sorted")
}

func TestParseCreateAccountFlags(t *testing.T) {
	opts, err := parseCreateAccountFlags([]string{"-email", "ada@example.com", "-password", "secret-pass", "-role", "Instructor"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleInstructor, opts.Request.Role)
	assert.Equal(t, "secret-pass", opts.Request.Password)

	_, err = parseCreateAccountFlags([]string{"-password", "x"})
	require.ErrorContains(t, err, "--email")

	_, err = parseCreateAccountFlags([]string{"-email", "a@example.com", "-role", "owner"})
	require.Error(t, err)

	_, err = parseCreateAccountFlags([]string{"-email", "a@example.com", "-password", "x", "-password-stdin"})
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestParseSetRoleAndStatusFlags(t *testing.T) {
	role, err := parseSetRoleFlags([]string{"-email", "a@example.com", "-role", "admin"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, role.Role)

	status, err := parseSetStatusFlags([]string{"-email", "a@example.com", "-status", "suspended"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.StatusSuspended, status.Status)

	_, err = parseSetStatusFlags([]string{"-email", "a@example.com", "-status", "banned"})
	require.Error(t, err)
}

func TestParseListProfilesFlags_ClampsLimit(t *testing.T) {
	opts, err := parseListProfilesFlags([]string{"-limit", "5000", "-role", "student"})
	require.NoError(t, err)
	assert.Equal(t, 50, opts.Filter.Limit)
	assert.Equal(t, domainauth.RoleStudent, opts.Filter.Role)
}

func TestParseMigrateFlags_RejectsZeroTimeout(t *testing.T) {
	_, err := parseMigrateFlags([]string{"-timeout", "0s"})
	require.Error(t, err)

	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter22\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)

	pw, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = readPassword(strings.NewReader("\n"))
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, confirm(strings.NewReader("YES\n"), &out, "reset database schema", "db"))
	assert.Contains(t, out.String(), "About to reset database schema for db.")

	require.Error(t, confirm(strings.NewReader("\n"), &out, "reset", "db"))
	require.Error(t, confirm(strings.NewReader(""), &out, "reset", "db"))
}

func TestIsLikelyRemoteHost(t *testing.T) {
	for host, want := range map[string]bool{
		"":              false,
		"localhost":     false,
		"127.0.0.1":     false,
		"::1":           false,
		"db.local":      false,
		"10.1.2.3":      true,
		"db.example.io": true,
	} {
		assert.Equal(t, want, isLikelyRemoteHost(host), host)
	}
}

func TestGuardRemoteHost_RefusesWithoutFlag(t *testing.T) {
	cmdCtx := &commandContext{Config: config.AppConfig{Postgres: config.DBConfig{Host: "db.example.io"}}}
	remote, err := guardRemoteHost(cmdCtx, false, "seed")
	assert.True(t, remote)
	require.ErrorContains(t, err, "--allow-remote")
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"campus"`, quoteIdentifier("campus"))
	assert.Equal(t, `"a""b"`, quoteIdentifier(`a"b`))
}

func TestPrintProfiles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, nil))
	assert.Equal(t, "(no profiles found)\n", buf.String())

	buf.Reset()
	registered := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, printProfiles(&buf, []*domainauth.Profile{
		{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: domainauth.RoleAdmin,
			Status: domainauth.StatusActive, RegisteredAt: registered},
		{Email: "anon@example.com", Role: domainauth.RoleStudent, Status: domainauth.StatusInactive, RegisteredAt: registered},
	}))
	out := buf.String()
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "2024-09-01")
	assert.Regexp(t, `anon@example.com\s+-\s+student`, out)
}

func TestPrintSessions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSessions(&buf, []sessionRow{{
		ID:      "0123456789abcdef",
		UserID:  "u1",
		Email:   "ada@example.com",
		Expires: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
		TTL:     90 * time.Second,
	}}))
	out := buf.String()
	assert.Contains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "2024-09-01T12:00:00Z")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "Total sessions: 1")
}

func TestRenderTTLAndShortID(t *testing.T) {
	assert.Equal(t, "no expiry", renderTTL(-1))
	assert.Equal(t, "key missing", renderTTL(-2))
	assert.Equal(t, "5s", renderTTL(5*time.Second))
	assert.Equal(t, "short", shortID("short"))
	assert.Equal(t, "01234567...cdef", shortID("0123456789abcdef"))
}

func TestWriteSections(t *testing.T) {
	sections := []*model.ContentSection{{Section: "hero", Data: map[string]any{"title": "Hi"}}}

	var pretty bytes.Buffer
	require.NoError(t, writeSections(&pretty, sections, false))
	assert.True(t, strings.HasPrefix(pretty.String(), "[\n"))
	assert.Contains(t, pretty.String(), `"section": "hero"`)

	var compact bytes.Buffer
	require.NoError(t, writeSections(&compact, sections, true))
	assert.Equal(t, 1, strings.Count(compact.String(), "\n"))

	var empty bytes.Buffer
	require.NoError(t, writeSections(&empty, nil, false))
	assert.Equal(t, "[]\n", empty.String())
}

func TestHasRedisConfig(t *testing.T) {
	assert.False(t, hasRedisConfig(nil))
	assert.False(t, hasRedisConfig(&config.RedisConfig{}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{URI: "localhost:6379"}))
	assert.False(t, hasRedisConfig(&config.RedisConfig{UseSentinel: true}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{UseCluster: true, ClusterNodes: []string{"a:1"}}))
}
