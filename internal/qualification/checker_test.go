package qualification

import "testing"

func TestCheck_NoProfileUnrestricted(t *testing.T) {
	res := Check(nil, "t1")
	if !res.Qualified {
		t.Fatalf("missing profile should be unrestricted: %+v", res)
	}
}

func TestCheck_InactiveEmployee(t *testing.T) {
	res := Check(&Profile{EmployeeID: "e1", Active: false}, "t1")
	if res.Qualified || res.Reason != "Employee is inactive" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheck_EmptyListUnrestricted(t *testing.T) {
	res := Check(&Profile{EmployeeID: "e1", Active: true}, "t1")
	if !res.Qualified {
		t.Fatalf("empty treatment list should be unrestricted: %+v", res)
	}
}

func TestCheck_ListedTreatment(t *testing.T) {
	p := &Profile{EmployeeID: "e1", Active: true, TreatmentIDs: []string{"t1", "t2"}}
	if res := Check(p, "t2"); !res.Qualified {
		t.Fatalf("listed treatment should qualify: %+v", res)
	}
	res := Check(p, "t3")
	if res.Qualified || res.Reason != "Employee is not qualified for this treatment" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
