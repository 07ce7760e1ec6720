package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/kintree/pkg/cache"
	"github.com/matzehuels/kintree/pkg/layout"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err == nil {
		t.Error("missing input should fail")
	}

	o = Options{Input: "a.json", Name: "b"}
	if err := o.ValidateAndSetDefaults(); err == nil {
		t.Error("input and name together should fail")
	}

	o = Options{Input: "a.json"}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight {
		t.Errorf("frame defaults not applied: %v x %v", o.Width, o.Height)
	}
	if len(o.Formats) != 1 || o.Formats[0] != FormatSVG {
		t.Errorf("format default not applied: %v", o.Formats)
	}
	if o.Logger == nil {
		t.Error("logger default not applied")
	}
}

func TestOptionsKeyOptsIncludeOverrides(t *testing.T) {
	o := Options{Input: "a.json"}
	o.SetLayoutDefaults()
	base := o.LayoutKeyOpts()

	ov := layout.Overrides{}
	ov.Set(1, layout.Point{X: 10, Y: 20})
	o.Overrides = ov
	with := o.LayoutKeyOpts()

	if base.OverridesHash == with.OverridesHash {
		t.Error("override set should change the layout key")
	}
}

func writeSampleSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "family.json")
	data := []byte(`{
  "name": "Elena",
  "age": 72,
  "category": "female",
  "children": [
    {"name": "Marta", "age": 45, "category": "female"},
    {"name": "Jorge", "age": 41, "category": "male"}
  ]
}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func TestRunnerExecuteDOT(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(nil, nil, nil)

	result, err := runner.Execute(ctx, Options{
		Input:   writeSampleSnapshot(t),
		Formats: []string{FormatDOT, FormatJSON},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Stats.PersonCount != 3 || result.Stats.EdgeCount != 2 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if result.TreeHash == "" {
		t.Error("missing tree hash")
	}
	if len(result.Layout.Nodes) != 3 {
		t.Errorf("layout has %d nodes, want 3", len(result.Layout.Nodes))
	}
	dot := string(result.Artifacts[FormatDOT])
	if dot == "" || len(result.Artifacts[FormatJSON]) == 0 {
		t.Fatalf("missing artifacts: %v", result.Artifacts)
	}
}

func TestRunnerLayoutCaching(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := NewRunner(fc, nil, nil)
	opts := Options{Input: writeSampleSnapshot(t), Formats: []string{FormatDOT}}

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.CacheInfo.LayoutHit || first.CacheInfo.RenderHit {
		t.Errorf("first run should miss: %+v", first.CacheInfo)
	}

	second, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.LayoutHit || !second.CacheInfo.RenderHit {
		t.Errorf("second run should hit: %+v", second.CacheInfo)
	}
	if string(first.Artifacts[FormatDOT]) != string(second.Artifacts[FormatDOT]) {
		t.Error("cached artifact differs from rendered artifact")
	}

	// Refresh bypasses the cache.
	opts.Refresh = true
	third, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	if third.CacheInfo.LayoutHit || third.CacheInfo.RenderHit {
		t.Errorf("refresh run should miss: %+v", third.CacheInfo)
	}
}

func TestRunnerOverridesChangeOutput(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(nil, nil, nil)
	input := writeSampleSnapshot(t)

	plain, err := runner.Execute(ctx, Options{Input: input, Formats: []string{FormatDOT}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ov := layout.Overrides{}
	ov.Set(1, layout.Point{X: 40, Y: 99})
	moved, err := runner.Execute(ctx, Options{Input: input, Formats: []string{FormatDOT}, Overrides: ov})
	if err != nil {
		t.Fatalf("Execute with overrides: %v", err)
	}

	if string(plain.Artifacts[FormatDOT]) == string(moved.Artifacts[FormatDOT]) {
		t.Error("override should change rendered DOT")
	}
	pos, ok := moved.Layout.Position(1)
	if !ok || pos.X != 40 || pos.Y != 99 {
		t.Errorf("override not honored: %+v, %v", pos, ok)
	}
}

func TestRunnerLoadMissingFile(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	if _, err := runner.Execute(context.Background(), Options{Input: "/does/not/exist.json", Formats: []string{FormatDOT}}); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestRunnerNameWithoutStore(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	if _, err := runner.Load(context.Background(), Options{Name: "familia"}); err == nil {
		t.Error("expected error when no store configured")
	}
}
