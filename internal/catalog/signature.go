package catalog

import (
	"slices"
	"strings"
)

// Signature is the ordered parameter type list of a function, optionally
// followed by its return type. It is the grouping key for a sweep.
type Signature struct {
	Params  []string
	Returns string // empty unless discovered with DiscoverOperators
}

// Key is a comparable form of the signature. Two signatures are equal iff
// their keys are equal.
func (s Signature) Key() string {
	var b strings.Builder
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(p)
	}
	if s.Returns != "" {
		b.WriteByte(0x1e)
		b.WriteString(s.Returns)
	}
	return b.String()
}

// Equal reports element-wise equality.
func (s Signature) Equal(o Signature) bool {
	return s.Returns == o.Returns && slices.Equal(s.Params, o.Params)
}

// Compare orders signatures element by element, shorter prefixes first,
// then by return type.
func (s Signature) Compare(o Signature) int {
	if c := slices.Compare(s.Params, o.Params); c != 0 {
		return c
	}
	return strings.Compare(s.Returns, o.Returns)
}

func (s Signature) String() string {
	out := "(" + strings.Join(s.Params, ", ") + ")"
	if s.Returns != "" {
		out += " -> " + s.Returns
	}
	return out
}

// LocalName strips any namespace qualifier: "ext::geo::area" -> "area".
func LocalName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
