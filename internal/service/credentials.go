package service

import (
	"strings"

	"github.com/septivank/energy-metering-ingress/internal/token"
	"github.com/septivank/energy-metering-ingress/internal/wire"
)

// Request is a transport-independent inbound request
type Request struct {
	ID   string
	Body []byte
	// Authorization is the raw Authorization header, if any
	Authorization string
}

// CredentialExtractor finds the access token of a request
type CredentialExtractor interface {
	Extract(req Request, reading wire.Reading) token.RawToken
}

// BodyCredentials reads the token embedded in the decoded message
type BodyCredentials struct{}

func (BodyCredentials) Extract(_ Request, reading wire.Reading) token.RawToken {
	return token.RawToken{Value: reading.AccessToken}
}

// BearerCredentials reads the token from an "Authorization: Bearer <token>" header.
// A missing header or another scheme yields an empty header token.
type BearerCredentials struct{}

func (BearerCredentials) Extract(req Request, _ wire.Reading) token.RawToken {
	scheme, value, ok := strings.Cut(strings.TrimSpace(req.Authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return token.RawToken{FromHeader: true}
	}
	return token.RawToken{Value: strings.TrimSpace(value), FromHeader: true}
}
