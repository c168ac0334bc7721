package loader

import (
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/leegramling/modhost"
	"github.com/leegramling/modhost/errors"
)

// Surface is the declared export surface a module must provide: every
// required function with its signature. Binding resolves the whole surface
// before any invocation, so a module missing one export fails as a unit.
type Surface struct {
	sigs  map[string]*signature
	names []string
}

type signature struct {
	params  []wit.Type
	results []wit.Type
}

// defaultSurfaceText declares the classic shared-library exercise surface.
// Pointer parameters travel as u32 offsets into module memory.
const defaultSurfaceText = `
	lib_initialize: func() -> s32;
	lib_process_data: func(in: u32, len: u32, out: u32, cap: u32) -> s32;
	lib_execute_callback: func(value: s32) -> s32;
	lib_increment_counter: func();
	lib_version: func() -> (u32, u32);
`

// DefaultSurface returns the surface for the standard lib_* export set.
func DefaultSurface() *Surface {
	return MustParseSurface(defaultSurfaceText)
}

// MustParseSurface is ParseSurface for compiled-in declarations; it panics
// on a malformed declaration.
func MustParseSurface(text string) *Surface {
	s, err := ParseSurface(text)
	if err != nil {
		panic(err)
	}
	return s
}

// funcPattern matches one declaration: name: func(params) -> result;
var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?;`)

// ParseSurface parses WIT-style function declarations into a Surface.
func ParseSurface(text string) (*Surface, error) {
	s := &Surface{sigs: make(map[string]*signature)}

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		sig := &signature{}

		params := strings.TrimSpace(match[2])
		if params != "" {
			for _, p := range strings.Split(params, ",") {
				typStr := p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				t, err := wit.ParseType(strings.TrimSpace(typStr))
				if err != nil {
					return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "parse param type in "+name)
				}
				sig.params = append(sig.params, t)
			}
		}

		results := strings.TrimSpace(match[3])
		if results != "" && results != "()" {
			parts := []string{results}
			if strings.HasPrefix(results, "(") && strings.HasSuffix(results, ")") {
				inner := strings.TrimSuffix(strings.TrimPrefix(results, "("), ")")
				parts = strings.Split(inner, ",")
			}
			for _, part := range parts {
				t, err := wit.ParseType(strings.TrimSpace(part))
				if err != nil {
					return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "parse result type in "+name)
				}
				sig.results = append(sig.results, t)
			}
		}

		if _, dup := s.sigs[name]; dup {
			return nil, errors.InvalidData(errors.PhaseParse, "duplicate declaration of "+name)
		}
		s.sigs[name] = sig
		s.names = append(s.names, name)
	}

	if len(s.names) == 0 {
		return nil, errors.InvalidData(errors.PhaseParse, "no function declarations found")
	}
	return s, nil
}

// Names returns the declared function names in declaration order.
func (s *Surface) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Describe renders a declared signature in core value types, for listings
// and error messages.
func (s *Surface) Describe(name string) string {
	sig, ok := s.sigs[name]
	if !ok {
		return ""
	}
	return formatSignature(flattenTypes(sig.params), flattenTypes(sig.results))
}

// check validates a resolved function definition against the declaration.
func (s *Surface) check(name string, def api.FunctionDefinition) error {
	sig := s.sigs[name]
	wantParams := flattenTypes(sig.params)
	wantResults := flattenTypes(sig.results)

	if !valueTypesEqual(wantParams, def.ParamTypes()) || !valueTypesEqual(wantResults, def.ResultTypes()) {
		return errors.TypeMismatch(name,
			formatSignature(wantParams, wantResults),
			formatSignature(def.ParamTypes(), def.ResultTypes()))
	}
	return nil
}

// flattenTypes maps WIT primitive types onto core wasm value types.
func flattenTypes(types []wit.Type) []api.ValueType {
	out := make([]api.ValueType, 0, len(types))
	for _, t := range types {
		out = append(out, coreType(t))
	}
	return out
}

func coreType(t wit.Type) api.ValueType {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32
	case wit.U64, wit.S64:
		return api.ValueTypeI64
	case wit.F32:
		return api.ValueTypeF32
	case wit.F64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

func valueTypesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatSignature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(")->(")
	for i, r := range results {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(api.ValueTypeName(r))
	}
	b.WriteByte(')')
	return b.String()
}

// Required symbols outside the function surface.
var requiredGlobals = []string{modhost.SymbolGlobalCounter}
