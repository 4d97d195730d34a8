package schema

import (
	"testing"

	"github.com/carenotes/veil/internal/document"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Run("empty subject root", func(t *testing.T) {
		tab := Default()
		tab.SubjectRoot = nil
		if err := tab.Validate(); err == nil {
			t.Error("expected error for empty subject root")
		}
	})

	t.Run("unnamed field", func(t *testing.T) {
		tab := Default()
		tab.Subject = append(tab.Subject, Field{Path: document.ParsePath("usager.x"), Rule: RuleCity})
		if err := tab.Validate(); err == nil {
			t.Error("expected error for unnamed field")
		}
	})

	t.Run("duplicate path", func(t *testing.T) {
		tab := Default()
		tab.Subject = append(tab.Subject, Field{
			Name: "dup", Path: document.ParsePath("usager.nom"), Rule: RuleCity,
		})
		if err := tab.Validate(); err == nil {
			t.Error("expected error for duplicate path")
		}
	})

	t.Run("same relative path in subject and contact scopes is fine", func(t *testing.T) {
		tab := Default()
		tab.Subject = append(tab.Subject, Field{
			Name: "subject_extra", Path: document.ParsePath("nom_usage"), Rule: RuleLastName,
		})
		tab.Contact = append(tab.Contact, Field{
			Name: "contact_extra", Path: document.ParsePath("nom_usage"), Rule: RuleLastName,
		})
		if err := tab.Validate(); err != nil {
			t.Errorf("cross-scope duplicate rejected: %v", err)
		}
	})

	t.Run("empty deny path", func(t *testing.T) {
		tab := Default()
		tab.Deny = append(tab.Deny, document.Path{})
		if err := tab.Validate(); err == nil {
			t.Error("expected error for empty deny path")
		}
	})
}

func TestRuleString(t *testing.T) {
	if RuleFirstName.String() != "first_name" {
		t.Errorf("got %q", RuleFirstName.String())
	}
	if Rule(99).String() != "rule(99)" {
		t.Errorf("got %q", Rule(99).String())
	}
}
