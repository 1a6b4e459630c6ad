// Package synth builds placeholder arguments for a signature from the value
// registry.
package synth

import (
	"fmt"
	"strings"

	"extsweep/internal/catalog"
	"extsweep/internal/logging"
	"extsweep/internal/registry"
)

// DefaultArrayFormat wraps one element into a SQLite JSON array.
const DefaultArrayFormat = "json_array(%s)"

// ConfigurationError means the registry has no sample for a type a
// signature needs. The registry must be extended; it is not a defect of the
// function under test.
type ConfigurationError struct {
	Type      string
	Signature catalog.Signature
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("need a value of type %s for bulk testing (signature %s)", e.Type, e.Signature)
}

// Synthesizer maps parameter types to literal expressions.
type Synthesizer struct {
	registry    *registry.Registry
	arrayFormat string
}

// New creates a synthesizer. An empty arrayFormat selects
// DefaultArrayFormat.
func New(reg *registry.Registry, arrayFormat string) *Synthesizer {
	if arrayFormat == "" {
		arrayFormat = DefaultArrayFormat
	}
	return &Synthesizer{registry: reg, arrayFormat: arrayFormat}
}

// Synthesize returns one literal per parameter of sig. The return type, if
// any, is ignored.
func (s *Synthesizer) Synthesize(sig catalog.Signature) ([]string, error) {
	args := make([]string, 0, len(sig.Params))
	for _, param := range sig.Params {
		arg, err := s.argument(param)
		if err != nil {
			return nil, &ConfigurationError{Type: param, Signature: sig}
		}
		args = append(args, arg)
	}
	return args, nil
}

func (s *Synthesizer) argument(param string) (string, error) {
	elem, isArray := arrayElement(param)

	vals := s.registry.Literals(registry.Query{TypeName: catalog.LocalName(elem)})
	if len(vals) == 0 {
		return "", fmt.Errorf("no sample for %s", elem)
	}
	if isArray {
		return fmt.Sprintf(s.arrayFormat, vals[0]), nil
	}
	return vals[0], nil
}

// arrayElement strips an "array<...>" wrapper.
func arrayElement(param string) (string, bool) {
	if strings.HasPrefix(param, "array<") && strings.HasSuffix(param, ">") {
		return param[len("array<") : len(param)-1], true
	}
	return param, false
}

// Call is the synthesized argument list shared by every function of a group.
type Call struct {
	Group catalog.Group
	Args  []string
}

// Plan synthesizes arguments for every group before anything is invoked, so
// a missing sample aborts the sweep up front.
func (s *Synthesizer) Plan(groups []catalog.Group) ([]Call, error) {
	log := logging.Get(logging.CategorySynth)

	calls := make([]Call, 0, len(groups))
	for _, g := range groups {
		args, err := s.Synthesize(g.Signature)
		if err != nil {
			log.Error("%v", err)
			return nil, err
		}
		log.Debug("%s -> (%s)", g.Signature, strings.Join(args, ", "))
		calls = append(calls, Call{Group: g, Args: args})
	}
	return calls, nil
}
