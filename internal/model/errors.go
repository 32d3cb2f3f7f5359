package model

import "errors"

var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrAdminNotFound      = errors.New("admin not found")

	// Token errors
	ErrMissingToken   = errors.New("missing token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("token malformed")
	ErrRevokedToken   = errors.New("token revoked")
	ErrInvalidSession = errors.New("invalid session")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Content errors
	ErrPageNotFound  = errors.New("page not found")
	ErrDuplicateSlug = errors.New("slug already exists")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
