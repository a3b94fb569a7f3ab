package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Handshake credential names.
const (
	CookieName  = "token"
	QueryParam  = "token"
	Subprotocol = "access_token"
)

// Source tells where a credential was found.
type Source string

const (
	SourceCookie   Source = "cookie"
	SourceProtocol Source = "auth_payload"
	SourceHeader   Source = "authorization_header"
	SourceQuery    Source = "query"
)

// Insecure reports whether the credential travelled in the URL.
func (s Source) Insecure() bool { return s == SourceQuery }

// Credential is a raw token and where it came from.
type Credential struct {
	Token  string
	Source Source
}

// Extract finds a credential in priority order: cookie, the
// "access_token, <token>" websocket subprotocol pair, the Authorization
// bearer header, and finally the query string when allowQuery is set.
func Extract(r *http.Request, allowQuery bool) (Credential, error) {
	if c, err := r.Cookie(CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return Credential{Token: strings.TrimSpace(c.Value), Source: SourceCookie}, nil
	}
	if token := protocolToken(r); token != "" {
		return Credential{Token: token, Source: SourceProtocol}, nil
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return Credential{Token: token, Source: SourceHeader}, nil
	}
	if allowQuery {
		if token := strings.TrimSpace(r.URL.Query().Get(QueryParam)); token != "" {
			return Credential{Token: token, Source: SourceQuery}, nil
		}
	}
	return Credential{}, ErrMissingToken
}

// Authenticate extracts and verifies the credential of r.
func (c Chain) Authenticate(r *http.Request, allowQuery bool) (*Claims, Credential, error) {
	cred, err := Extract(r, allowQuery)
	if err != nil {
		return nil, cred, err
	}
	claims, err := c.Verify(cred.Token)
	if err != nil {
		return nil, cred, err
	}
	return claims, cred, nil
}

func protocolToken(r *http.Request) string {
	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if p == Subprotocol && i+1 < len(protocols) {
			return protocols[i+1]
		}
	}
	return ""
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
