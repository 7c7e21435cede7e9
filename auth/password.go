package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"kinetic/session"
)

// PasswordAuthenticator implements the username-password flow. It is
// the weakest option and exists for scripts against sandboxes; prefer
// the JWT bearer flow where a connected app certificate is available.
type PasswordAuthenticator struct {
	creds      Credentials
	apiVersion string
}

func NewPasswordAuthenticator(creds Credentials, apiVersion string) *PasswordAuthenticator {
	return &PasswordAuthenticator{creds: creds, apiVersion: apiVersion}
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context) (*session.Session, error) {
	cfg := &oauth2.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL(a.creds.LoginURL)},
	}

	token, err := cfg.PasswordCredentialsToken(ctx, a.creds.Username, a.creds.Password)
	if err != nil {
		return nil, fmt.Errorf("password token exchange failed: %w", err)
	}

	// The platform returns the org's API host alongside the token.
	instanceURL, _ := token.Extra("instance_url").(string)
	if instanceURL == "" {
		return nil, fmt.Errorf("token response carries no instance_url")
	}

	return session.New(instanceURL, token.AccessToken, a.apiVersion), nil
}
