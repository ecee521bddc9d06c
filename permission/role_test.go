package permission

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]RoleTag{
		"super_admin":  RoleSuperAdmin,
		"school_admin": RoleSchoolAdmin,
		"teacher":      RoleTeacher,
		"student":      RoleStudent,
		"parent":       RoleParent,
		"janitor":      RoleUnknown,
		"":             RoleUnknown,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRoleTag_RoundTrip(t *testing.T) {
	for _, r := range []RoleTag{RoleSuperAdmin, RoleSchoolAdmin, RoleTeacher, RoleStudent, RoleParent} {
		if !r.Valid() {
			t.Errorf("%v should be valid", r)
		}
		if got := ParseRole(r.String()); got != r {
			t.Errorf("round trip %v -> %q -> %v", r, r.String(), got)
		}
	}
	if RoleUnknown.Valid() {
		t.Error("RoleUnknown should not be valid")
	}
	if got := RoleUnknown.String(); got != "unknown" {
		t.Errorf("RoleUnknown.String() = %q", got)
	}
}

func TestName(t *testing.T) {
	if got := Name(ActionView, "student"); got != "view_student" {
		t.Errorf("Name = %q", got)
	}
}

func TestBaseline(t *testing.T) {
	if !Baseline(RoleTeacher).Has("create_grade") {
		t.Error("teacher baseline should include create_grade")
	}
	if Baseline(RoleStudent).Has("create_grade") {
		t.Error("student baseline should not include create_grade")
	}
	if Baseline(RoleUnknown).Len() != 0 {
		t.Error("unknown role baseline should be empty")
	}
	if !Baseline(RoleSuperAdmin).Has("manage_tenants") {
		t.Error("super admin baseline should include manage_tenants")
	}
}
