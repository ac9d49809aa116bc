package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"owner", RoleOwner},
		{"Owner", RoleOwner},
		{"  OWNER ", RoleOwner},
		{"admin", RoleAdmin},
		{"Admin", RoleAdmin},
		{"member", RoleMember},
		{"", RoleMember},
		{"superuser", RoleMember},
		{"viewer", RoleMember},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseRole(tt.in); got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRole_Idempotent(t *testing.T) {
	for _, in := range []string{"Owner", "ADMIN", "nonsense", ""} {
		once := ParseRole(in)
		if twice := ParseRole(string(once)); twice != once {
			t.Errorf("ParseRole(ParseRole(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		role      Role
		isOwner   bool
		canManage bool
	}{
		{RoleOwner, true, true},
		{RoleAdmin, false, true},
		{RoleMember, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			if got := tt.role.IsOwner(); got != tt.isOwner {
				t.Errorf("IsOwner() = %v, want %v", got, tt.isOwner)
			}
			if got := tt.role.CanManage(); got != tt.canManage {
				t.Errorf("CanManage() = %v, want %v", got, tt.canManage)
			}
		})
	}
}
