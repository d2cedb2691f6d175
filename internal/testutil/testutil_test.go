package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-meloplus/internal/testutil"
)

func TestRequireSynthCLI_SkipsWhenAbsent(t *testing.T) {
	t.Setenv(testutil.SynthCLIEnv, "/nonexistent/melo-binary")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireSynthCLI(fakeT)
	if !skipped {
		t.Error("expected RequireSynthCLI to skip when binary is absent")
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("MELOPLUS_TESTUTIL_PROBE", "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireEnv(fakeT, "MELOPLUS_TESTUTIL_PROBE")
	if !skipped {
		t.Error("expected RequireEnv to skip for an empty variable")
	}

	t.Setenv("MELOPLUS_TESTUTIL_PROBE", "yes")
	if got := testutil.RequireEnv(t, "MELOPLUS_TESTUTIL_PROBE"); got != "yes" {
		t.Errorf("RequireEnv = %q; want yes", got)
	}
}

func TestToneWAV_IsValid(t *testing.T) {
	data := testutil.ToneWAV(t, 22050, 11025)
	testutil.AssertValidWAV(t, data, 22050)
	testutil.AssertWAVDurationApprox(t, data, 22050, 0.49, 0.51)
}

func TestWriteParquet_CreatesFile(t *testing.T) {
	type row struct {
		Text string `parquet:"text"`
	}
	p := filepath.Join(t.TempDir(), "nested", "x.parquet")
	testutil.WriteParquet(t, p, []row{{Text: "a"}, {Text: "b"}})

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(data) < 8 || string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Errorf("file is not framed by PAR1 magic")
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skipf.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
}
