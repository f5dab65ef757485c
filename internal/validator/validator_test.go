package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"a@b.co", " sam@example.com "} {
		if err := ValidateEmail(email); err != nil {
			t.Fatalf("%q: unexpected error %v", email, err)
		}
	}
	for _, email := range []string{"", "plain", "a@b", "a b@c.d", strings.Repeat("a", 320) + "@b.co"} {
		if err := ValidateEmail(email); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("%q: expected invalid email, got %v", email, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Sam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateName("   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("longenough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePassword("short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
}

func TestValidatePIN(t *testing.T) {
	for _, pin := range []string{"1234", "123456"} {
		if err := ValidatePIN(pin); err != nil {
			t.Fatalf("%q: unexpected error %v", pin, err)
		}
	}
	for _, pin := range []string{"", "123", "1234567", "12a4", " 1234"} {
		if err := ValidatePIN(pin); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("%q: expected invalid pin, got %v", pin, err)
		}
	}
}
