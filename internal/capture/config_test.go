package capture

import (
	"strings"
	"testing"
	"testing/quick"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(Config{})
	if err != nil {
		t.Fatalf("NewConfig(Config{}) = %v; want nil", err)
	}
	if cfg.TimeoutMS != 3000 || cfg.Quality != 90 || cfg.Format != "png" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestNewConfigRejectsOutOfRangeQuality(t *testing.T) {
	_, err := NewConfig(Config{Quality: 150})
	if err == nil {
		t.Fatal("NewConfig(quality=150) = nil; want error")
	}
	if !strings.Contains(err.Error(), "10 and 100") {
		t.Fatalf("error should mention valid range 10-100, got %q", err.Error())
	}
}

func TestNewConfigAggregatesAllIssues(t *testing.T) {
	cfg := Config{TimeoutMS: 50, Quality: 5, Format: "gif", Width: 200000, Height: 1}
	issues := cfg.Issues()
	if len(issues) < 4 {
		t.Fatalf("Issues() = %d entries (%v); want at least 4", len(issues), issues)
	}
}

func TestNewConfigDimensionsBothOrNeither(t *testing.T) {
	if _, err := NewConfig(Config{Width: 800}); err == nil {
		t.Fatal("width without height should fail")
	}
	if _, err := NewConfig(Config{Height: 600}); err == nil {
		t.Fatal("height without width should fail")
	}
	if _, err := NewConfig(Config{Width: 800, Height: 600}); err != nil {
		t.Fatalf("both dimensions should validate, got %v", err)
	}
}

func TestMergedFillsOnlyUnsetFields(t *testing.T) {
	base := Config{Quality: 50, Format: "jpeg", TimeoutMS: 7000}

	got := Config{}.Merged(base)
	if got.Quality != 50 || got.Format != "jpeg" || got.TimeoutMS != 7000 {
		t.Errorf("empty config merged = %+v, want the base", got)
	}

	got = Config{TimeoutMS: 2000, Format: "png", FullPage: true}.Merged(base)
	if got.TimeoutMS != 2000 || got.Format != "png" || !got.FullPage {
		t.Errorf("set fields must survive merge: %+v", got)
	}
	if got.Quality != 50 {
		t.Errorf("unset quality should come from base, got %d", got.Quality)
	}
}

func TestConfigValidityProperty(t *testing.T) {
	formats := []string{"png", "jpeg", "jpg"}
	f := func(q, tmo, w, h uint16, fi uint8) bool {
		cfg := Config{
			TimeoutMS: MinTimeoutMS + int(tmo)%(MaxTimeoutMS-MinTimeoutMS+1),
			Quality:   MinQuality + int(q)%(MaxQuality-MinQuality+1),
			Format:    formats[int(fi)%len(formats)],
			Width:     1 + int(w)%MaxDimension,
			Height:    1 + int(h)%MaxDimension,
		}
		got, err := NewConfig(cfg)
		return err == nil && got == cfg
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatalf("valid in-range configs must construct: %v", err)
	}
}

func TestResultInvariants(t *testing.T) {
	ok := Succeeded("/tmp/shot.png", map[string]any{"file_size": 10})
	if !ok.Success || ok.Path == "" {
		t.Fatalf("successful result must carry a path: %+v", ok)
	}
	if ok.Timestamp <= 0 {
		t.Fatalf("timestamp not set: %+v", ok)
	}

	bad := Failed("browser went away")
	if bad.Success || bad.Error == "" {
		t.Fatalf("failed result must carry an error: %+v", bad)
	}
}

func TestProviderValidationTighterThanConstruction(t *testing.T) {
	p := NewCDPProvider("http://127.0.0.1:9222")
	p.caps.MaxTimeoutMS = 5000

	cfg, err := NewConfig(Config{TimeoutMS: 10000})
	if err != nil {
		t.Fatalf("construction should accept 10000ms: %v", err)
	}

	if err := p.validateAgainstCaps(cfg); err == nil {
		t.Fatal("provider with max_timeout=5000 must reject 10000ms config")
	}
}

func TestCodedErrorFormatting(t *testing.T) {
	err := newError(CodeTimeout, "screenshot timeout after 3000ms", nil)
	if got := err.Error(); !strings.HasPrefix(got, CodeTimeout+": ") {
		t.Fatalf("Error() = %q; want %q prefix", got, CodeTimeout)
	}
}
