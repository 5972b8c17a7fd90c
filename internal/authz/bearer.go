package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/w-lukawski/gabinet/libs/auth"
	"github.com/w-lukawski/gabinet/libs/httpx"
)

// BearerResolver turns a bearer token into the identity headers the
// handlers read, for deployments where no gateway sits in front. HS256
// tokens verify against the shared secret; RS256 tokens against the issuer's
// JWKS.
type BearerResolver struct {
	secret string
	jwks   *auth.JWKSClient
}

func NewBearerResolver(secret, jwksURL string) *BearerResolver {
	secret = strings.TrimSpace(secret)
	jwksURL = strings.TrimSpace(jwksURL)
	if secret == "" && jwksURL == "" {
		return nil
	}
	r := &BearerResolver{secret: secret}
	if jwksURL != "" {
		r.jwks = auth.NewJWKSClient(jwksURL, 5*time.Minute)
	}
	return r
}

// Middleware resolves the token only when the gateway headers are absent;
// already-resolved requests pass through untouched.
func (b *BearerResolver) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("X-Org-Id")) == "" {
				if claims := b.resolve(r); claims != nil {
					r.Header.Set("X-Org-Id", claims.OrgID)
					r.Header.Set("X-User-Id", claims.Sub)
					r.Header.Set("X-Role", claims.Role)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (b *BearerResolver) resolve(r *http.Request) *auth.Claims {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(raw, "Bearer ") {
		return nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if token == "" {
		return nil
	}

	header, err := auth.ParseHeader(token)
	if err != nil {
		return nil
	}
	switch header.Alg {
	case "HS256":
		if b.secret == "" {
			return nil
		}
		claims, err := auth.ParseAndVerifyHS256(token, b.secret)
		if err != nil {
			return nil
		}
		return claims
	case "RS256":
		if b.jwks == nil {
			return nil
		}
		key, err := b.jwks.Get(header.Kid)
		if err != nil {
			return nil
		}
		claims, err := auth.VerifyRS256(token, key)
		if err != nil {
			return nil
		}
		return claims
	}
	return nil
}
