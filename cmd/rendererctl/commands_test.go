package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/pkg/store"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Dir:        t.TempDir(),
		LogLevel:   "error",
		LogFormat:  "text",
		RuleEngine: rdata.EngineExpr,
	}
}

func run(t *testing.T, cfg Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfg Config, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, args...)
	if err != nil {
		t.Fatalf("rendererctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func fileStore(t *testing.T, cfg Config) *store.FileStore {
	t.Helper()
	registry, err := catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	fs, err := store.NewFileStore(cfg.Dir, registry)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return fs
}

func loadAsset(t *testing.T, cfg Config, name string) *rdata.Asset {
	t.Helper()
	asset, err := fileStore(t, cfg).Load(context.Background(), name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return asset
}

func featureTypes(asset *rdata.Asset) []string {
	out := make([]string, len(asset.Features))
	for i, obj := range asset.Features {
		if obj != nil {
			out[i] = obj.Type
		}
	}
	return out
}

func TestCLIEditsAssetDocument(t *testing.T) {
	cfg := testConfig(t)

	out := mustRun(t, cfg, "create", "Forward")
	if !strings.Contains(out, "Created Forward") {
		t.Fatalf("unexpected create output: %q", out)
	}
	if _, err := os.Stat(fileStore(t, cfg).Path("Forward")); err != nil {
		t.Fatalf("expected asset document: %v", err)
	}

	out = mustRun(t, cfg, "add", "Forward", "RenderObjects")
	if !strings.Contains(out, "Added NewRenderObjects at 0") {
		t.Fatalf("unexpected add output: %q", out)
	}
	mustRun(t, cfg, "add", "Forward", "ScreenSpaceAmbientOcclusion")

	if _, err := run(t, cfg, "add", "Forward", "ScreenSpaceAmbientOcclusion"); !errors.Is(err, rdata.ErrDuplicateType) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := run(t, cfg, "add", "Forward", "Bloom"); !errors.Is(err, rdata.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}

	mustRun(t, cfg, "move", "Forward", "1", "up")
	mustRun(t, cfg, "rename", "Forward", "1", "Opaque-Pass!")
	mustRun(t, cfg, "toggle", "Forward", "0")

	asset := loadAsset(t, cfg, "Forward")
	if got := featureTypes(asset); strings.Join(got, ",") != "ScreenSpaceAmbientOcclusion,RenderObjects" {
		t.Fatalf("unexpected order %v", got)
	}
	if asset.Features[1].Name != "OpaquePass" {
		t.Fatalf("expected sanitized name, got %q", asset.Features[1].Name)
	}
	if asset.Features[0].Active {
		t.Fatalf("expected toggled feature to be inactive")
	}
	if len(asset.FeatureMap) != 2 || asset.FeatureMap[0] == 0 || asset.FeatureMap[1] == 0 {
		t.Fatalf("expected identifier list to stay aligned, got %v", asset.FeatureMap)
	}

	out = mustRun(t, cfg, "list", "Forward")
	for _, want := range []string{"OpaquePass", "RenderObjects", "NewScreenSpaceAmbientOcclusion"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, cfg, "remove", "Forward", "0")
	asset = loadAsset(t, cfg, "Forward")
	if got := featureTypes(asset); len(got) != 1 || got[0] != "RenderObjects" {
		t.Fatalf("unexpected features after remove %v", got)
	}
}

func TestCLIRejectsBadArguments(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Forward")
	mustRun(t, cfg, "add", "Forward", "RenderObjects")

	if _, err := run(t, cfg, "move", "Forward", "0", "sideways"); err == nil {
		t.Fatalf("expected direction error")
	}
	if _, err := run(t, cfg, "move", "Forward", "0", "up"); !errors.Is(err, rdata.ErrInvalidIndex) {
		t.Fatalf("expected invalid index moving the first feature up, got %v", err)
	}
	if _, err := run(t, cfg, "remove", "Forward", "x"); err == nil {
		t.Fatalf("expected index parse error")
	}
	if _, err := run(t, cfg, "list", "Deferred"); !errors.Is(err, store.ErrAssetNotFound) {
		t.Fatalf("expected missing asset, got %v", err)
	}
	if _, err := run(t, cfg, "create", "Forward"); !errors.Is(err, store.ErrAssetExists) {
		t.Fatalf("expected existing asset error, got %v", err)
	}
}

func TestCLISetValidatesSettings(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Forward")
	mustRun(t, cfg, "add", "Forward", "ScreenSpaceAmbientOcclusion")

	mustRun(t, cfg, "set", "Forward", "0", "intensity=2.5", "downsample=true")
	asset := loadAsset(t, cfg, "Forward")
	settings := asset.Features[0].Settings
	if settings["intensity"] != 2.5 || settings["downsample"] != true {
		t.Fatalf("unexpected settings %v", settings)
	}

	if _, err := run(t, cfg, "set", "Forward", "0", "intensity=9"); err == nil {
		t.Fatalf("expected schema violation")
	}
	asset = loadAsset(t, cfg, "Forward")
	if asset.Features[0].Settings["intensity"] != 2.5 {
		t.Fatalf("expected rejected edit to leave settings untouched, got %v", asset.Features[0].Settings)
	}

	if _, err := run(t, cfg, "set", "Forward", "0", "intensity"); err == nil {
		t.Fatalf("expected assignment parse error")
	}
}

func TestCLITypesHonoursDuplicateRule(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Forward")

	out := mustRun(t, cfg, "types")
	if !strings.Contains(out, "Screen Space Shadows (Experimental)") {
		t.Fatalf("expected experimental menu name:\n%s", out)
	}

	mustRun(t, cfg, "add", "Forward", "DecalRendererFeature")
	out = mustRun(t, cfg, "types", "Forward")
	if strings.Contains(out, "DecalRendererFeature") {
		t.Fatalf("expected present single-instance type to be hidden:\n%s", out)
	}
	if !strings.Contains(out, "RenderObjects") {
		t.Fatalf("expected repeatable type to stay available:\n%s", out)
	}

	cfg.Rule = `feature == "RenderObjects" && count >= 1`
	mustRun(t, cfg, "add", "Forward", "RenderObjects")
	if _, err := run(t, cfg, "add", "Forward", "RenderObjects"); !errors.Is(err, rdata.ErrDuplicateType) {
		t.Fatalf("expected custom rule to reject the second instance, got %v", err)
	}
	cfg.RuleEngine = rdata.EngineCEL
	cfg.Rule = `feature in present`
	if _, err := run(t, cfg, "add", "Forward", "FullScreenPassRendererFeature"); err != nil {
		t.Fatalf("expected cel rule to accept a new type: %v", err)
	}
}

func TestCLIShowAndQuery(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Forward")
	out := mustRun(t, cfg, "show", "Forward")
	if !strings.Contains(out, rdata.EmptyListMessage) || !strings.Contains(out, "["+rdata.AddFeatureLabel+"]") {
		t.Fatalf("unexpected empty inspector:\n%s", out)
	}

	mustRun(t, cfg, "add", "Forward", "ScreenSpaceAmbientOcclusion")
	out = mustRun(t, cfg, "show", "--expand", "Forward")
	for _, want := range []string{"- [x] NewScreenSpaceAmbientOcclusion (Screen Space Ambient Occlusion)", "    intensity: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfg, "query", "-c", "Forward", `.objects | map(.type)`)
	if strings.TrimSpace(out) != `["ScreenSpaceAmbientOcclusion"]` {
		t.Fatalf("unexpected query output %q", out)
	}
	if _, err := run(t, cfg, "query", "Forward", `.objects[`); err == nil {
		t.Fatalf("expected query parse error")
	}
}

func TestCLIRepairRelinksDocument(t *testing.T) {
	cfg := testConfig(t)
	mustRun(t, cfg, "create", "Forward")
	mustRun(t, cfg, "add", "Forward", "RenderObjects")

	path := fileStore(t, cfg).Path("Forward")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	broken := bytes.Replace(data, []byte("featureMap:\n"), []byte("featureMap: []\nignored:\n"), 1)
	if err := os.WriteFile(path, broken, 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}

	out := mustRun(t, cfg, "list", "Forward")
	if !strings.Contains(out, "misaligned") {
		t.Fatalf("expected misalignment warning:\n%s", out)
	}
	out = mustRun(t, cfg, "repair", "Forward")
	if !strings.Contains(out, "identifier list rebuilt: true") {
		t.Fatalf("unexpected repair output:\n%s", out)
	}
	asset := loadAsset(t, cfg, "Forward")
	if len(asset.FeatureMap) != 1 || asset.FeatureMap[0] == 0 {
		t.Fatalf("expected rebuilt identifier list, got %v", asset.FeatureMap)
	}
}

func TestCLIMetricsSummary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics = true
	cmd := newRootCmd(cfg)
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"create", "Forward"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("create: %v", err)
	}

	cmd = newRootCmd(cfg)
	logs.Reset()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"add", "Forward", "RenderObjects"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(logs.String(), "rendererctl_operations_total") {
		t.Fatalf("expected metrics summary, got:\n%s", logs.String())
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RENDERERCTL_DIR", "/tmp/assets")
	t.Setenv("RENDERERCTL_LOG_LEVEL", "debug")
	t.Setenv("RENDERERCTL_METRICS", "true")
	t.Setenv("RENDERERCTL_ACTIVITY_VERBS", "renderer.feature.added,renderer.feature.removed")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Dir != "/tmp/assets" || cfg.LogLevel != "debug" || !cfg.Metrics {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.ActivityVerbs) != 2 || cfg.ActivityVerbs[1] != "renderer.feature.removed" {
		t.Fatalf("unexpected activity verbs %v", cfg.ActivityVerbs)
	}
	if cfg.RuleEngine != rdata.EngineExpr || cfg.LogFormat != "text" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	t.Setenv("RENDERERCTL_LOG_FORMAT", "xml")
	if _, err := loadConfig(); !errors.Is(err, ErrParsingConfig) {
		t.Fatalf("expected parsing error, got %v", err)
	}
	t.Setenv("RENDERERCTL_LOG_FORMAT", "json")
	t.Setenv("RENDERERCTL_METRICS", "maybe")
	if _, err := loadConfig(); !errors.Is(err, ErrParsingConfig) {
		t.Fatalf("expected parsing error, got %v", err)
	}
}
