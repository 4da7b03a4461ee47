package validation

import "testing"

func TestValidScopeName(t *testing.T) {
	valid := []string{
		"user",
		"data",
		"openid",
		"a",
		"a1",
		"storage:read",
		"a_b-c.d:scope2",
		"x0123456789",
	}
	for _, s := range valid {
		if !ValidScopeName(s) {
			t.Errorf("ValidScopeName(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"BAD",
		"Bad",
		"bad space",
		";hack",
		"semi;colon",
		":leader",
		"trailer:",
		"_leader",
		"trailer_",
		"tab\tscope",
		"new\nline",
	}
	for _, s := range invalid {
		if ValidScopeName(s) {
			t.Errorf("ValidScopeName(%q) = true, want false", s)
		}
	}
}

func TestValidScopeNameLengthBounds(t *testing.T) {
	max := make([]byte, 64)
	for i := range max {
		max[i] = 'a'
	}
	if !ValidScopeName(string(max)) {
		t.Error("64-char scope should be valid")
	}
	if ValidScopeName(string(max) + "a") {
		t.Error("65-char scope should be invalid")
	}
}
