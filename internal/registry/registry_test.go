package registry

import (
	"strings"
	"testing"

	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/command"
	"github.com/nixgate/nixgate/internal/validate"
)

func testDescriptor(name string) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        name,
		Family:      "test",
		Description: "test tool",
		Safety:      SafetyReadOnly,
		Timeout:     TimeoutQuery,
		Params: []ParamSpec{
			{Name: "arg", Class: validate.ClassIdentifier, Required: true},
		},
		Exec: command.Template{
			Exe:  "echo",
			Args: []command.Arg{command.Param("arg")},
		},
	}
}

func TestNew_AcceptsValidDescriptors(t *testing.T) {
	r, err := New([]*ToolDescriptor{testDescriptor("alpha"), testDescriptor("beta")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	d, ok := r.Lookup("alpha")
	if !ok || d.Name != "alpha" {
		t.Fatalf("Lookup(alpha) = %v, %v", d, ok)
	}
	if _, ok := r.Lookup("gamma"); ok {
		t.Fatal("Lookup(gamma) should miss")
	}
}

func TestNew_RejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ToolDescriptor)
		wantErr string
	}{
		{
			name:    "empty name",
			mutate:  func(d *ToolDescriptor) { d.Name = "" },
			wantErr: "empty name",
		},
		{
			name:    "unknown safety",
			mutate:  func(d *ToolDescriptor) { d.Safety = "reckless" },
			wantErr: "unknown safety",
		},
		{
			name:    "unknown timeout class",
			mutate:  func(d *ToolDescriptor) { d.Timeout = "forever" },
			wantErr: "unknown timeout class",
		},
		{
			name:    "missing executable",
			mutate:  func(d *ToolDescriptor) { d.Exec.Exe = "" },
			wantErr: "no executable",
		},
		{
			name: "unknown parameter class",
			mutate: func(d *ToolDescriptor) {
				d.Params[0].Class = "made_up"
			},
			wantErr: "unknown class",
		},
		{
			name: "repeated without list type",
			mutate: func(d *ToolDescriptor) {
				d.Params[0].Repeated = true
			},
			wantErr: "repeated and list type must agree",
		},
		{
			name: "default on required parameter",
			mutate: func(d *ToolDescriptor) {
				d.Params[0].Default = "x"
			},
			wantErr: "defaults apply to optional scalar parameters",
		},
		{
			name: "exec references undeclared parameter",
			mutate: func(d *ToolDescriptor) {
				d.Exec.Args = append(d.Exec.Args, command.Param("ghost"))
			},
			wantErr: "undeclared parameter",
		},
		{
			name: "switch on non-bool parameter",
			mutate: func(d *ToolDescriptor) {
				d.Exec.Args = append(d.Exec.Args, command.Switch("--x", "arg"))
			},
			wantErr: "switch requires bool type",
		},
		{
			name: "list expansion on scalar parameter",
			mutate: func(d *ToolDescriptor) {
				d.Exec.Args = append(d.Exec.Args, command.Rest("arg"))
			},
			wantErr: "list expansion requires repeated",
		},
		{
			name: "scalar slot fed by bool",
			mutate: func(d *ToolDescriptor) {
				d.Params = append(d.Params, ParamSpec{Name: "flag", Type: TypeBool})
				d.Exec.Args = append(d.Exec.Args, command.Param("flag"))
			},
			wantErr: "scalar slot fed by non-scalar",
		},
		{
			name: "cache on destructive tool",
			mutate: func(d *ToolDescriptor) {
				d.Safety = SafetyDestructive
				d.Cache = &CachePolicy{Family: cache.FamilySearch, KeyTemplate: "{arg}"}
			},
			wantErr: "destructive tools must not cache",
		},
		{
			name: "cache with unknown family",
			mutate: func(d *ToolDescriptor) {
				d.Cache = &CachePolicy{Family: "bogus", KeyTemplate: "{arg}"}
			},
			wantErr: "unknown cache family",
		},
		{
			name: "cache key references undeclared parameter",
			mutate: func(d *ToolDescriptor) {
				d.Cache = &CachePolicy{Family: cache.FamilySearch, KeyTemplate: "{missing}"}
			},
			wantErr: "cache key references undeclared parameter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDescriptor("tool")
			tt.mutate(d)
			_, err := New([]*ToolDescriptor{d})
			if err == nil {
				t.Fatal("New accepted invalid descriptor")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RejectsDuplicateNames(t *testing.T) {
	_, err := New([]*ToolDescriptor{testDescriptor("same"), testDescriptor("same")})
	if err == nil || !strings.Contains(err.Error(), "duplicate tool") {
		t.Fatalf("err = %v, want duplicate tool error", err)
	}
}

func TestDescriptors_SortedByName(t *testing.T) {
	r, err := New([]*ToolDescriptor{testDescriptor("zeta"), testDescriptor("alpha"), testDescriptor("mid")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	descs := r.Descriptors()
	want := []string{"alpha", "mid", "zeta"}
	for i, d := range descs {
		if d.Name != want[i] {
			t.Fatalf("Descriptors[%d] = %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestFlags(t *testing.T) {
	ro := testDescriptor("ro")
	idem := testDescriptor("idem")
	idem.Safety = SafetyIdempotent
	destr := testDescriptor("destr")
	destr.Safety = SafetyDestructive

	r, err := New([]*ToolDescriptor{ro, idem, destr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if f, _ := r.Flags("ro"); !f.ReadOnly || f.Idempotent || f.Destructive {
		t.Fatalf("Flags(ro) = %+v", f)
	}
	if f, _ := r.Flags("idem"); f.ReadOnly || !f.Idempotent || f.Destructive {
		t.Fatalf("Flags(idem) = %+v", f)
	}
	if f, _ := r.Flags("destr"); !f.Destructive {
		t.Fatalf("Flags(destr) = %+v", f)
	}
	if _, ok := r.Flags("nope"); ok {
		t.Fatal("Flags(nope) should miss")
	}

	if !destr.RequiresConfirmation() {
		t.Fatal("destructive tool must require confirmation")
	}
	if ro.RequiresConfirmation() || idem.RequiresConfirmation() {
		t.Fatal("non-destructive tools must not require confirmation")
	}
}

func TestTimeoutClass_Durations(t *testing.T) {
	tests := []struct {
		class TimeoutClass
		want  string
	}{
		{TimeoutQuery, "30s"},
		{TimeoutEval, "30s"},
		{TimeoutShell, "1m0s"},
		{TimeoutDefault, "2m0s"},
		{TimeoutBuild, "5m0s"},
	}
	for _, tt := range tests {
		if got := tt.class.Duration().String(); got != tt.want {
			t.Errorf("%s duration = %s, want %s", tt.class, got, tt.want)
		}
	}
	if TimeoutClass("bogus").Known() {
		t.Error("bogus class should not be known")
	}
}
