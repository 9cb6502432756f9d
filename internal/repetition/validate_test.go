package repetition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/torosent/repeater/internal/feeder"
	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/variables"
)

type mapLookup map[string]request.Template

func (m mapLookup) Lookup(ref string) (request.Template, bool) {
	t, ok := m[ref]
	return t, ok
}

func testLookup() mapLookup {
	return mapLookup{"Users/Get": {Name: "Get", Method: "GET", URL: "http://localhost/users/{{id}}"}}
}

func TestValidate_ErrorOrder(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Code
	}{
		{
			name: "no base request beats everything",
			cfg:  Config{Mode: ModeSimple, DelayMs: -1},
			want: CodeBaseRequestNotSelected,
		},
		{
			name: "whitespace ref is not selected",
			cfg:  Config{BaseRequestRef: "  ", Mode: ModeSimple},
			want: CodeBaseRequestNotSelected,
		},
		{
			name: "unknown base request",
			cfg:  Config{BaseRequestRef: "Nope", Mode: ModeSimple, DelayMs: -1},
			want: CodeBaseRequestNotFound,
		},
		{
			name: "negative delay before count",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSimple, DelayMs: -1},
			want: CodeDelayNegative,
		},
		{
			name: "missing count",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSimple, MaxConcurrency: IntPtr(0)},
			want: CodeRepetitionsAtLeastOne,
		},
		{
			name: "zero count",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeRandom, RepetitionCount: IntPtr(0), MaxConcurrency: IntPtr(1)},
			want: CodeRepetitionsAtLeastOne,
		},
		{
			name: "missing concurrency",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSimple, RepetitionCount: IntPtr(3)},
			want: CodeMaxConcurrencyAtLeastOne,
		},
		{
			name: "random without input",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeRandom, RepetitionCount: IntPtr(3), MaxConcurrency: IntPtr(1)},
			want: CodeInputDataAtLeastOneLine,
		},
		{
			name: "sequential empty array",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSequential, InputData: feeder.RawJSON("[]")},
			want: CodeInputDataAtLeastOneLine,
		},
		{
			name: "sequential invalid json",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSequential, InputData: feeder.RawJSON("{")},
			want: CodeInputDataInvalid,
		},
		{
			name: "sequential missing file",
			cfg:  Config{BaseRequestRef: "Users/Get", Mode: ModeSequential, InputData: feeder.File("/definitely/missing.json")},
			want: CodeInputDataFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.cfg, testLookup(), variables.NewResolver(), nil)
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want code %s", err, tt.want)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tt.want {
				t.Errorf("Validate() error %T does not carry code %s", err, tt.want)
			}
		})
	}
}

func TestValidate_SequentialIgnoresCountAndConcurrency(t *testing.T) {
	cfg := Config{
		BaseRequestRef:  "Users/Get",
		Mode:            ModeSequential,
		RepetitionCount: IntPtr(0),
		MaxConcurrency:  IntPtr(0),
		InputData:       feeder.RawJSON(`[{"id":"1"},{"id":"2"},{"id":"3"}]`),
	}
	v, err := Validate(cfg, testLookup(), nil, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.MaxConcurrency != 1 {
		t.Errorf("MaxConcurrency = %d, want 1", v.MaxConcurrency)
	}
	if v.Plan.Len() != 3 {
		t.Errorf("plan length = %d, want 3", v.Plan.Len())
	}
}

func TestValidate_SimpleIgnoresInputData(t *testing.T) {
	cfg := Config{
		BaseRequestRef:  "Users/Get",
		Mode:            ModeSimple,
		RepetitionCount: IntPtr(2),
		MaxConcurrency:  IntPtr(4),
		DelayMs:         250,
		InputData:       feeder.RawJSON("{not json"),
	}
	v, err := Validate(cfg, testLookup(), nil, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if v.Plan.Len() != 2 || v.MaxConcurrency != 4 || v.Delay != 250*time.Millisecond {
		t.Errorf("Validated = %+v", v)
	}
	for _, it := range v.Plan.Iterations {
		if it.Record != nil {
			t.Errorf("iteration %d has a record in simple mode", it.Ordinal)
		}
	}
}

func TestValidate_FilePathUsesVariables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(`[{"id":"7"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var env variables.Set
	env.Put("dataDir", dir)

	cfg := Config{
		BaseRequestRef: "Users/Get",
		Mode:           ModeSequential,
		InputData:      feeder.File("{{dataDir}}/data.json"),
	}
	v, err := Validate(cfg, testLookup(), variables.NewResolver(env), nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(v.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(v.Records))
	}
}

func TestValidate_RequestIsSnapshot(t *testing.T) {
	lookup := mapLookup{"R": {URL: "http://a", Headers: []request.Header{{Name: "X", Value: "1"}}}}
	v, err := Validate(Config{BaseRequestRef: "R", Mode: ModeSimple, RepetitionCount: IntPtr(1), MaxConcurrency: IntPtr(1)}, lookup, nil, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	lookup["R"].Headers[0].Value = "2"
	if v.Request.Headers[0].Value != "1" {
		t.Error("validated request shares header storage with the collection")
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	_, err := Validate(Config{BaseRequestRef: "Users/Get", Mode: Mode("burst")}, testLookup(), nil, nil)
	if err == nil {
		t.Fatal("Validate() error = nil for unknown mode")
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Code: CodeDelayNegative, Field: "delay_ms"}
	if got := err.Error(); got != "delay_ms: delay can't be negative" {
		t.Errorf("Error() = %q", got)
	}
}
