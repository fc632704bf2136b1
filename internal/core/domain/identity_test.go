package domain

import "testing"

func TestRegistrationStep_Transitions(t *testing.T) {
	cases := []struct {
		from, to RegistrationStep
		allowed  bool
	}{
		{StepOne, StepTwo, true},
		{StepTwo, StepThree, true},
		{StepTwo, StepCompleted, true}, // face gate may land after promotion is requested
		{StepThree, StepCompleted, true},
		{StepOne, StepThree, false},
		{StepOne, StepCompleted, false},
		{StepThree, StepOne, false},
		{StepCompleted, StepOne, false},
		{StepCompleted, StepTwo, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestIdentity_FullName(t *testing.T) {
	cases := []struct {
		first, middle, last, want string
	}{
		{"Ana", "Lucia", "Gomez", "Ana Lucia Gomez"},
		{"Ana", "", "Gomez", "Ana Gomez"},
		{"Ana", "", "", "Ana"},
	}
	for _, tc := range cases {
		i := Identity{Firstname: tc.first, Middlename: tc.middle, Lastname: tc.last}
		if got := i.FullName(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestIdentity_OtpConfirmed(t *testing.T) {
	for step, want := range map[RegistrationStep]bool{
		StepOne:       false,
		StepTwo:       true,
		StepThree:     true,
		StepCompleted: true,
	} {
		i := Identity{RegistrationStep: step}
		if i.OtpConfirmed() != want {
			t.Errorf("step %s: expected %v", step, want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePatient, RoleReceptionist, RoleNurse, RoleDoctor, RoleAdmin, RoleSuperAdmin} {
		if !ValidRole(r) {
			t.Errorf("%s must be valid", r)
		}
	}
	if ValidRole("wizard") || ValidRole("") {
		t.Error("unknown roles must be rejected")
	}
}

func TestValidStaffRole(t *testing.T) {
	for _, r := range []string{RoleReceptionist, RoleNurse, RoleDoctor, RoleAdmin, RoleSuperAdmin} {
		if !ValidStaffRole(r) {
			t.Errorf("%s must be a valid staff role", r)
		}
	}
	if ValidStaffRole(RolePatient) || ValidStaffRole("wizard") {
		t.Error("patient and unknown roles must be rejected")
	}
}
