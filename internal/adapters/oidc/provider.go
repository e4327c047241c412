package oidc

// Package oidc verifies credentials against an external OIDC provider using the
// resource-owner password grant and maps its claims into a domain identity.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
	"golang.org/x/oauth2"
)

// DefaultGroupsExpression selects groups from common claim shapes.
const DefaultGroupsExpression = "groups || memberof || realm_access.roles"

// Provider implements ports.CredentialVerifier using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	groupsExpr string
	roleExpr   string
}

var _ ports.CredentialVerifier = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// GroupsExpression is a JMESPath expression over the merged claims yielding a list of groups.
	GroupsExpression string
	// RoleExpression, when set, is a JMESPath expression yielding a role name directly.
	RoleExpression string
	HTTPClient     *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider. Discovery happens once, here.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	groupsExpr := config.GroupsExpression
	if groupsExpr == "" {
		groupsExpr = DefaultGroupsExpression
	}
	if _, err := jmespath.Compile(groupsExpr); err != nil {
		return nil, fmt.Errorf("compile groups expression: %w", err)
	}
	if config.RoleExpression != "" {
		if _, err := jmespath.Compile(config.RoleExpression); err != nil {
			return nil, fmt.Errorf("compile role expression: %w", err)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scope := config.Scope
	if scope == "" {
		scope = "openid profile email"
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		groupsExpr:   groupsExpr,
		roleExpr:     config.RoleExpression,
	}, nil
}

// Verify exchanges email/password for tokens and returns the identity they describe.
// A rejected grant is reported as domainauth.ErrInvalidCredentials.
func (p *Provider) Verify(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if email == "" || password == "" {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && isRejectedGrant(re) {
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		return domainauth.Identity{}, fmt.Errorf("password grant: %w", err)
	}

	claims, err := p.extractFromIDToken(ctx, token)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}
	if stringClaim(claims, "sub") == "" || stringClaim(claims, "email", "mail") == "" {
		if fillErr := p.fillFromUserInfo(ctx, token, claims); fillErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	expiresAt := time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	id := p.mapClaims(claims)
	if id.UserID == "" {
		return domainauth.Identity{}, errors.New("provider returned no subject")
	}
	if id.Email == "" {
		id.Email = email
	}
	id.ExpiresAt = expiresAt
	return id, nil
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	claims := map[string]any{}
	if !p.hasOpenIDScope() {
		return claims, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}
	return claims, nil
}

// fillFromUserInfo adds userinfo claims that the id token did not carry.
func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, claims map[string]any) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	extra := map[string]any{}
	if err := ui.Claims(&extra); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	for k, v := range extra {
		if _, ok := claims[k]; !ok {
			claims[k] = v
		}
	}
	return nil
}

// mapClaims maps standard and AD/ADFS claim shapes into an Identity.
func (p *Provider) mapClaims(claims map[string]any) domainauth.Identity {
	id := domainauth.Identity{
		UserID:    stringClaim(claims, "sub", "samaccountname"),
		Email:     stringClaim(claims, "email", "mail"),
		FirstName: stringClaim(claims, "given_name", "firstname"),
		LastName:  stringClaim(claims, "family_name", "lastname"),
		Groups:    p.groups(claims),
	}
	if p.roleExpr != "" {
		if v, err := jmespath.Search(p.roleExpr, claims); err == nil {
			if s, ok := v.(string); ok {
				if role, err := domainauth.ParseRole(s); err == nil {
					id.Role = role
				}
			}
		}
	}
	return id
}

func (p *Provider) groups(claims map[string]any) []string {
	v, err := jmespath.Search(p.groupsExpr, claims)
	if err != nil || v == nil {
		return nil
	}
	switch g := v.(type) {
	case string:
		return []string{g}
	case []any:
		out := make([]string, 0, len(g))
		for _, item := range g {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// isRejectedGrant reports whether the token endpoint refused the credentials themselves.
func isRejectedGrant(re *oauth2.RetrieveError) bool {
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized
}

// stringClaim returns the first non-empty string claim among keys.
func stringClaim(claims map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := claims[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
