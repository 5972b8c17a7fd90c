package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/w-lukawski/gabinet/libs/auth"
)

func TestBearerResolver_HS256(t *testing.T) {
	resolver := NewBearerResolver("test-secret", "")
	if resolver == nil {
		t.Fatal("resolver should be enabled")
	}

	token, err := auth.SignHS256(auth.Claims{
		Sub:   "emp-1",
		OrgID: "org-1",
		Role:  "employee",
		Exp:   time.Now().Add(time.Hour).Unix(),
	}, "test-secret")
	if err != nil {
		t.Fatal(err)
	}

	var got Identity
	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromRequest(r)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got.OrgID != "org-1" || got.UserID != "emp-1" || got.Role != "employee" {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestBearerResolver_BadSignatureIgnored(t *testing.T) {
	resolver := NewBearerResolver("test-secret", "")
	token, err := auth.SignHS256(auth.Claims{Sub: "emp-1", OrgID: "org-1", Role: "owner"}, "other-secret")
	if err != nil {
		t.Fatal(err)
	}

	var got Identity
	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromRequest(r)
	}))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got.OrgID != "" {
		t.Fatalf("forged token must not resolve an identity, got %+v", got)
	}
}

func TestBearerResolver_HeadersWin(t *testing.T) {
	resolver := NewBearerResolver("test-secret", "")
	token, _ := auth.SignHS256(auth.Claims{Sub: "emp-2", OrgID: "org-2", Role: "owner"}, "test-secret")

	var got Identity
	handler := resolver.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromRequest(r)
	}))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("X-Org-Id", "org-1")
	r.Header.Set("X-User-Id", "emp-1")
	r.Header.Set("X-Role", "employee")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got.OrgID != "org-1" || got.UserID != "emp-1" {
		t.Fatalf("gateway headers must win over the token, got %+v", got)
	}
}

func TestBearerResolver_Disabled(t *testing.T) {
	if NewBearerResolver("", " ") != nil {
		t.Fatal("no secret and no jwks url should disable the resolver")
	}
}
