package authz

import (
	"net/http/httptest"
	"testing"
)

func TestRoleProvider_Check(t *testing.T) {
	p := NewRoleProvider()

	cases := []struct {
		name    string
		id      Identity
		feature string
		action  string
		allowed bool
		scope   Scope
	}{
		{"owner all", Identity{OrgID: "org-1", UserID: "u1", Role: RoleOwner}, FeatureAppointments, ActionWrite, true, ScopeAll},
		{"admin all", Identity{OrgID: "org-1", UserID: "u1", Role: RoleAdmin}, FeatureSchedule, ActionWrite, true, ScopeAll},
		{"employee own appointments", Identity{OrgID: "org-1", UserID: "emp-1", Role: RoleEmployee}, FeatureAppointments, ActionWrite, true, ScopeOwn},
		{"employee reads schedule", Identity{OrgID: "org-1", UserID: "emp-1", Role: RoleEmployee}, FeatureSchedule, ActionRead, true, ScopeOwn},
		{"employee cannot administer schedule", Identity{OrgID: "org-1", UserID: "emp-1", Role: RoleEmployee}, FeatureSchedule, ActionWrite, false, ScopeNone},
		{"unknown role denied", Identity{OrgID: "org-1", UserID: "u1", Role: "patient"}, FeatureAppointments, ActionRead, false, ScopeNone},
		{"missing org denied", Identity{UserID: "u1", Role: RoleOwner}, FeatureAppointments, ActionRead, false, ScopeNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := p.Check(tc.id, tc.feature, tc.action)
			if d.Allowed != tc.allowed || d.Scope != tc.scope {
				t.Fatalf("got %+v, want allowed=%v scope=%s", d, tc.allowed, tc.scope)
			}
		})
	}
}

func TestRoleProvider_OwnScopeCarriesEmployeeID(t *testing.T) {
	d := NewRoleProvider().Check(Identity{OrgID: "org-1", UserID: "emp-7", Role: RoleEmployee}, FeatureAppointments, ActionRead)
	if d.EmployeeID != "emp-7" {
		t.Fatalf("own scope must carry the caller's employee id, got %q", d.EmployeeID)
	}
}

func TestIdentityFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Org-Id", " org-1 ")
	r.Header.Set("X-User-Id", "u1")
	r.Header.Set("X-Role", "Owner")

	id := IdentityFromRequest(r)
	if id.OrgID != "org-1" || id.UserID != "u1" || id.Role != "owner" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestAdminKey(t *testing.T) {
	k, err := NewAdminKey("s3cret")
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("POST", "/", nil)
	if k.Verify(r) {
		t.Fatal("missing key must be rejected")
	}
	r.Header.Set("X-Admin-Key", "wrong")
	if k.Verify(r) {
		t.Fatal("wrong key must be rejected")
	}
	r.Header.Set("X-Admin-Key", "s3cret")
	if !k.Verify(r) {
		t.Fatal("correct key must pass")
	}
}

func TestAdminKey_Unconfigured(t *testing.T) {
	k, err := NewAdminKey("  ")
	if err != nil || k != nil {
		t.Fatalf("blank config should disable the gate, got %v, %v", k, err)
	}
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Admin-Key", "anything")
	if k.Verify(r) {
		t.Fatal("disabled gate must reject everything")
	}
}
