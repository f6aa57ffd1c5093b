// Package command turns validated parameters into process
// specifications and runs them under a supervised timeout.
//
// A Template maps named parameters onto argv positions. Every value
// occupies exactly one argv element (or the child's stdin),
// byte-for-byte; there is no API that accepts a pre-joined command
// line, so nothing in this package can introduce a shell.
package command

import (
	"fmt"

	"github.com/nixgate/nixgate/internal/validate"
)

// Params carries validated values into template expansion. String and
// list values only enter through validate.Validated; booleans carry no
// injection surface and are stored raw.
type Params struct {
	strs  map[string]string
	lists map[string][]string
	bools map[string]bool
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{
		strs:  make(map[string]string),
		lists: make(map[string][]string),
		bools: make(map[string]bool),
	}
}

func (p *Params) SetString(name string, v validate.Validated) {
	p.strs[name] = v.String()
}

func (p *Params) SetList(name string, vs []validate.Validated) {
	items := make([]string, len(vs))
	for i, v := range vs {
		items[i] = v.String()
	}
	p.lists[name] = items
}

func (p *Params) SetBool(name string, v bool) {
	p.bools[name] = v
}

// Spec is a fully resolved process invocation: no templating left, no
// quoting semantics, just an executable, its argv, optional stdin, and
// an optional working directory.
type Spec struct {
	Path  string
	Args  []string
	Stdin string
	Dir   string
}

type argKind int

const (
	argLit argKind = iota
	argParam
	argConcat
	argFlag
	argSwitch
	argEach
	argRest
	argRestDashed
)

// Arg is one element of a template's argv plan.
type Arg struct {
	kind argKind
	lit  string
	name string
	pre  []string
	segs []Arg
}

// Lit emits a fixed token.
func Lit(s string) Arg { return Arg{kind: argLit, lit: s} }

// Param emits the named string parameter as one token, or nothing when
// the parameter is absent (optional positionals).
func Param(name string) Arg { return Arg{kind: argParam, name: name} }

// Concat joins Lit and Param segments into a single token, e.g.
// "nixpkgs#" + package + ".meta". The whole token is omitted when any
// Param segment is absent.
func Concat(segs ...Arg) Arg { return Arg{kind: argConcat, segs: segs} }

// Flag emits `flag value` when the named parameter is present.
func Flag(flag, name string) Arg { return Arg{kind: argFlag, lit: flag, name: name} }

// Switch emits the flag token when the named boolean parameter is true.
func Switch(flag, name string) Arg { return Arg{kind: argSwitch, lit: flag, name: name} }

// FlagEach emits `flag value` once per element of the named list
// parameter.
func FlagEach(flag, name string) Arg { return Arg{kind: argEach, pre: []string{flag}, name: name} }

// PrefixEach emits the prefix tokens followed by the element, once per
// element of the named list parameter.
func PrefixEach(name string, prefix ...string) Arg { return Arg{kind: argEach, pre: prefix, name: name} }

// Rest appends every element of the named list parameter.
func Rest(name string) Arg { return Arg{kind: argRest, name: name} }

// RestDashed appends `--` followed by the elements when the named list
// parameter is non-empty, for executables that forward trailing
// arguments to a child program.
func RestDashed(name string) Arg { return Arg{kind: argRestDashed, name: name} }

// Template is the argv plan for one tool. StdinParam routes a
// parameter to the child's stdin instead of argv; Stdin supplies a
// fixed stdin payload; DirParam routes a parameter to the working
// directory.
type Template struct {
	Exe        string
	Args       []Arg
	StdinParam string
	Stdin      string
	DirParam   string
}

// Build expands the template against params. Optional parameters that
// are absent simply contribute nothing; required-ness is enforced by
// the dispatcher before Build runs.
func (t Template) Build(p *Params) (Spec, error) {
	if t.Exe == "" {
		return Spec{}, fmt.Errorf("Build: template has no executable")
	}

	spec := Spec{Path: t.Exe}
	for _, a := range t.Args {
		tokens, err := a.expand(p)
		if err != nil {
			return Spec{}, fmt.Errorf("Build %s: %w", t.Exe, err)
		}
		spec.Args = append(spec.Args, tokens...)
	}

	if t.StdinParam != "" {
		if v, ok := p.strs[t.StdinParam]; ok {
			spec.Stdin = v
		}
	} else if t.Stdin != "" {
		spec.Stdin = t.Stdin
	}

	if t.DirParam != "" {
		if v, ok := p.strs[t.DirParam]; ok {
			spec.Dir = v
		}
	}

	return spec, nil
}

func (a Arg) expand(p *Params) ([]string, error) {
	switch a.kind {
	case argLit:
		return []string{a.lit}, nil

	case argParam:
		if v, ok := p.strs[a.name]; ok {
			return []string{v}, nil
		}
		return nil, nil

	case argConcat:
		var token string
		for _, seg := range a.segs {
			switch seg.kind {
			case argLit:
				token += seg.lit
			case argParam:
				v, ok := p.strs[seg.name]
				if !ok {
					return nil, nil
				}
				token += v
			default:
				return nil, fmt.Errorf("concat segment must be Lit or Param")
			}
		}
		return []string{token}, nil

	case argFlag:
		if v, ok := p.strs[a.name]; ok {
			return []string{a.lit, v}, nil
		}
		return nil, nil

	case argSwitch:
		if p.bools[a.name] {
			return []string{a.lit}, nil
		}
		return nil, nil

	case argEach:
		items := p.lists[a.name]
		var out []string
		for _, item := range items {
			out = append(out, a.pre...)
			out = append(out, item)
		}
		return out, nil

	case argRest:
		return p.lists[a.name], nil

	case argRestDashed:
		items := p.lists[a.name]
		if len(items) == 0 {
			return nil, nil
		}
		return append([]string{"--"}, items...), nil

	default:
		return nil, fmt.Errorf("unknown arg kind %d", a.kind)
	}
}

// ParamUse describes how a template consumes one named parameter,
// for registry-time consistency checks.
type ParamUse struct {
	Name string
	List bool
	Bool bool
}

// Uses lists every parameter the template references, including stdin
// and working-directory routing.
func (t Template) Uses() []ParamUse {
	var uses []ParamUse
	var walk func(a Arg)
	walk = func(a Arg) {
		switch a.kind {
		case argParam, argFlag:
			uses = append(uses, ParamUse{Name: a.name})
		case argSwitch:
			uses = append(uses, ParamUse{Name: a.name, Bool: true})
		case argEach, argRest, argRestDashed:
			uses = append(uses, ParamUse{Name: a.name, List: true})
		case argConcat:
			for _, seg := range a.segs {
				walk(seg)
			}
		}
	}
	for _, a := range t.Args {
		walk(a)
	}
	if t.StdinParam != "" {
		uses = append(uses, ParamUse{Name: t.StdinParam})
	}
	if t.DirParam != "" {
		uses = append(uses, ParamUse{Name: t.DirParam})
	}
	return uses
}
