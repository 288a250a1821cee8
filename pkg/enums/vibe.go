package enums

import "fmt"

// Vibe is the stylistic register requested for rewrites.
type Vibe string

const (
	VibeAcademic     Vibe = "Academic"
	VibeCasual       Vibe = "Casual"
	VibeProfessional Vibe = "Professional"
	VibeLiterature   Vibe = "Literature"
)

var validVibes = []Vibe{
	VibeAcademic,
	VibeCasual,
	VibeProfessional,
	VibeLiterature,
}

// String implements fmt.Stringer.
func (v Vibe) String() string {
	return string(v)
}

// IsValid reports whether the value is a known Vibe.
func (v Vibe) IsValid() bool {
	for _, candidate := range validVibes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVibe converts raw input into a Vibe.
func ParseVibe(value string) (Vibe, error) {
	for _, candidate := range validVibes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vibe %q", value)
}
