package registry

import (
	"fmt"
)

// Overrides adjusts the built-in catalog from configuration: tools can
// be disabled outright or moved to a different timeout class. Override
// values are validated strictly so a typo in a tool name or class fails
// startup instead of silently doing nothing.
type Overrides struct {
	Disabled []string          `yaml:"disabled"`
	Timeouts map[string]string `yaml:"timeouts"`
}

// Empty reports whether the overrides change anything.
func (o Overrides) Empty() bool {
	return len(o.Disabled) == 0 && len(o.Timeouts) == 0
}

// Apply returns a new descriptor slice with the overrides folded in.
// Descriptors are copied before mutation so the input stays pristine.
func (o Overrides) Apply(descs []*ToolDescriptor) ([]*ToolDescriptor, error) {
	byName := make(map[string]bool, len(descs))
	for _, d := range descs {
		byName[d.Name] = true
	}
	for _, name := range o.Disabled {
		if !byName[name] {
			return nil, fmt.Errorf("Apply: disabled tool %q does not exist", name)
		}
	}
	for name, class := range o.Timeouts {
		if !byName[name] {
			return nil, fmt.Errorf("Apply: timeout override for unknown tool %q", name)
		}
		if !TimeoutClass(class).Known() {
			return nil, fmt.Errorf("Apply: tool %q: unknown timeout class %q", name, class)
		}
	}

	disabled := make(map[string]bool, len(o.Disabled))
	for _, name := range o.Disabled {
		disabled[name] = true
	}

	out := make([]*ToolDescriptor, 0, len(descs))
	for _, d := range descs {
		if disabled[d.Name] {
			continue
		}
		if class, ok := o.Timeouts[d.Name]; ok {
			cp := *d
			cp.Timeout = TimeoutClass(class)
			out = append(out, &cp)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Merge combines two override sets, with the receiver applied first and
// other layered on top. Later timeout values win on conflict.
func (o Overrides) Merge(other Overrides) Overrides {
	merged := Overrides{}
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, o.Disabled...), other.Disabled...) {
		if !seen[name] {
			seen[name] = true
			merged.Disabled = append(merged.Disabled, name)
		}
	}
	if len(o.Timeouts) > 0 || len(other.Timeouts) > 0 {
		merged.Timeouts = make(map[string]string, len(o.Timeouts)+len(other.Timeouts))
		for name, class := range o.Timeouts {
			merged.Timeouts[name] = class
		}
		for name, class := range other.Timeouts {
			merged.Timeouts[name] = class
		}
	}
	return merged
}
