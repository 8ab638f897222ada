package pipeline

import (
	"errors"
	"testing"

	"github.com/hakim/cybershield/internal/models"
)

func TestScopeValidateTarget(t *testing.T) {
	scope := ScopeConfig{AllowedDomains: []string{"example.uz", "*.Example.UZ"}}

	tests := []struct {
		target string
		ok     bool
	}{
		{"example.uz", true},
		{"https://EXAMPLE.uz/login", true},
		{"shop.example.uz", true},
		{"a.b.example.uz", false},
		{"notexample.uz", false},
		{"example.com", false},
	}
	for _, tt := range tests {
		err := scope.ValidateTarget(tt.target)
		if tt.ok && err != nil {
			t.Errorf("ValidateTarget(%q) = %v, want allowed", tt.target, err)
		}
		if !tt.ok && !errors.Is(err, models.ErrInvalidTarget) {
			t.Errorf("ValidateTarget(%q) = %v, want ErrInvalidTarget", tt.target, err)
		}
	}

	var empty ScopeConfig
	if err := empty.ValidateTarget("anything.org"); err != nil {
		t.Errorf("empty scope rejected target: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p, err := GetPreset("web")
	if err != nil {
		t.Fatalf("GetPreset: %v", err)
	}
	p.Tools[0] = "mutated"
	again, _ := GetPreset("web")
	if again.Tools[0] != "zap" {
		t.Error("GetPreset returned shared tool slice")
	}

	if _, err := GetPreset("bug-bounty"); !errors.Is(err, models.ErrInvalidPreset) {
		t.Errorf("err = %v, want ErrInvalidPreset", err)
	}
	if names := PresetNames(); len(names) != 3 || names[0] != "full" {
		t.Errorf("PresetNames = %v", names)
	}
}
