package validator

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"ada@example.com", "ada.lovelace+crm@sub.example.co"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("Expected %q valid, got %v", email, err)
		}
	}

	invalid := []string{"", "not-an-email", "@example.com", "ada@", "ada@localhost"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("Expected %q rejected", email)
		}
	}
}

func TestValidateEmailType(t *testing.T) {
	for _, et := range []string{"work", "personal", "other"} {
		if err := ValidateEmailType(et); err != nil {
			t.Errorf("Expected %q valid, got %v", et, err)
		}
	}
	if err := ValidateEmailType("corporate"); err == nil {
		t.Error("Expected unknown type rejected")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  ADA@Example.COM "); got != "ada@example.com" {
		t.Errorf("Unexpected normalization: %q", got)
	}
}
