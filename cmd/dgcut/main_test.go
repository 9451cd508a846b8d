package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGCut/config"
	"github.com/notargets/DGCut/cut"
)

func setup(t *testing.T) *cobra.Command {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	report = ""
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd
}

func TestTestCmd(t *testing.T) {
	cmd := setup(t)
	report = filepath.Join(t.TempDir(), "stats.yaml")
	defer func() { report = "" }()

	var (
		hex = "../../mesh/testdata/hex_plane.yaml"
		tet = "../../mesh/testdata/tet_corner.yaml"
	)
	err := runTests(cmd, []string{hex, tet})
	if err != nil {
		t.Fatalf("runTests failed: %v", err)
	}
	if out := cmd.OutOrStdout().(*bytes.Buffer).String(); !strings.HasPrefix(out, "ok") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var stats map[string]cut.Statistics
	if err = yaml.Unmarshal(data, &stats); err != nil {
		t.Fatalf("report is not YAML: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("report has %d entries, want one per file", len(stats))
	}
	if st := stats[hex]; st.VolumeCells != 2 || st.CutElements != 1 {
		t.Errorf("report has %d volume cells and %d cut elements", st.VolumeCells, st.CutElements)
	}
	if _, ok := stats[tet]; !ok {
		t.Errorf("report lacks %s", tet)
	}
}

func TestTestCmd_Failures(t *testing.T) {
	cmd := setup(t)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	src, err := os.ReadFile("../../mesh/testdata/hex_plane.yaml")
	if err != nil {
		t.Fatal(err)
	}
	src = bytes.Replace(src, []byte("volume_cells: 2"), []byte("volume_cells: 5"), 1)
	if err = os.WriteFile(bad, src, 0644); err != nil {
		t.Fatal(err)
	}

	err = runTests(cmd, []string{"../../mesh/testdata/tet_corner.yaml", bad, "missing.yaml"})
	if err == nil || err.Error() != "2 of 3 cut tests failed" {
		t.Fatalf("expected two failures, got %v", err)
	}
	out := cmd.OutOrStdout().(*bytes.Buffer).String()
	if !strings.Contains(out, "volume cells: got 2, want 5") {
		t.Errorf("mismatch not reported:\n%s", out)
	}
}

func TestRootCmd_Flags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "workers", "report"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag %s", name)
		}
	}
	if cutCmd.Flags().Lookup("mesh") == nil || cutCmd.Flags().Lookup("sides") == nil {
		t.Error("cut needs --mesh and --sides")
	}
}
