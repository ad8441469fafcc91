package transition

import (
	"fmt"
	"strings"
)

// Kind identifies a transition algorithm.
type Kind int

const (
	// Cut splices frames with no blending.
	Cut Kind = iota
	Crossfade
	DipToBlack
	Iris
	Push
	Wipe
)

var kindNames = map[Kind]string{
	Cut:        "cut",
	Crossfade:  "crossfade",
	DipToBlack: "dip_to_black",
	Iris:       "iris",
	Push:       "push",
	Wipe:       "wipe",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a name such as "crossfade" or "dip-to-black" to a Kind.
// Matching ignores case and treats '-' and ' ' like '_'. "dissolve" is
// accepted as an alias for crossfade.
func ParseKind(name string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == "dissolve" {
		return Crossfade, nil
	}
	for k, n := range kindNames {
		if n == norm {
			return k, nil
		}
	}
	return Cut, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name, so job files can write "kind: push".
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Type is a kind together with its configured duration.
type Type struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// IsCut reports whether no blending is required.
func (t Type) IsCut() bool {
	return t.Kind == Cut || t.Duration <= 0
}

// Spec places a Type at a clip boundary. Boundary 0 is between clip 0 and
// clip 1 of the sorted clip list.
type Spec struct {
	Boundary int `yaml:"boundary" json:"boundary"`
	Type     `yaml:",inline"`
}
