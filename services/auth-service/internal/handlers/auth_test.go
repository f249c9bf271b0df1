package handlers

import "testing"

func TestSecretHashing(t *testing.T) {
	password := "Str0ng!pass"
	hash, err := hashSecret(password)
	if err != nil {
		t.Fatalf("hashSecret failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifySecret(hash, password); err != nil {
		t.Fatalf("verifySecret should succeed: %v", err)
	}
	if err := verifySecret(hash, "wrong-pass"); err == nil {
		t.Fatal("verifySecret should fail for wrong password")
	}
}

func TestValidPassword(t *testing.T) {
	cases := []struct {
		password string
		want     bool
	}{
		{"Str0ng!pass", true},
		{"Ab1!xyzw", true},
		{"short1!A", true},
		{"Sh0rt!a", false},
		{"alllowercase1!", false},
		{"ALLUPPERCASE1!", false},
		{"NoDigits!here", false},
		{"NoSpecials123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := validPassword(tc.password); got != tc.want {
			t.Errorf("validPassword(%q) = %v, want %v", tc.password, got, tc.want)
		}
	}
}

func TestNormalizeAnswer(t *testing.T) {
	if got := normalizeAnswer("  Firulais  "); got != "firulais" {
		t.Fatalf("normalizeAnswer = %q, want %q", got, "firulais")
	}
	a, err := hashSecret(normalizeAnswer("Firulais"))
	if err != nil {
		t.Fatalf("hashSecret failed: %v", err)
	}
	if err := verifySecret(a, normalizeAnswer("FIRULAIS ")); err != nil {
		t.Fatal("answer comparison should be case and whitespace insensitive")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{"client", "veterinarian", "admin"} {
		if !validRole(role) {
			t.Errorf("validRole(%q) should be true", role)
		}
	}
	for _, role := range []string{"", "owner", "pet"} {
		if validRole(role) {
			t.Errorf("validRole(%q) should be false", role)
		}
	}
}
