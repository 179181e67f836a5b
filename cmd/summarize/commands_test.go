package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maauso/summarize-api/internal/audio"
	"github.com/maauso/summarize-api/internal/enhance"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeNoisyTone(t *testing.T, path string) {
	t.Helper()
	const rate = 16000
	rng := rand.New(rand.NewPCG(1, 2))
	sig := make(enhance.Signal, 2*rate)
	for i := range sig {
		tone := 0.3 * math.Sin(2*math.Pi*220*float64(i)/rate)
		sig[i] = tone + 0.02*(rng.Float64()*2-1)
	}
	if err := audio.WriteWAV(path, sig, rate); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
}

func TestRootCommandShowsHelp(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"run", "enhance", "jobs"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
}

func TestEnhanceCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "memo.wav")
	writeNoisyTone(t, in)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "enhance", in, "--out-dir", outDir, "--workers", "2")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}

	want := filepath.Join(outDir, "memo_enhanced.wav")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected output at %s: %v", want, err)
	}
	if !strings.Contains(out, "Tier:") || !strings.Contains(out, want) {
		t.Errorf("unexpected output:\n%s", out)
	}

	sig, rate, err := audio.ReadWAV(want)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if len(sig) != 2*16000 {
		t.Errorf("length = %d, want %d", len(sig), 2*16000)
	}
}

func TestEnhanceCommandAggressive(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "memo.wav")
	writeNoisyTone(t, in)
	dst := filepath.Join(dir, "clean.wav")

	out, err := execute(t, "enhance", in, dst, "--aggressive", "--sequential")
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if !strings.Contains(out, "Tier:    low") {
		t.Errorf("aggressive run should use the low tier:\n%s", out)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected output at %s: %v", dst, err)
	}
}

func TestEnhanceCommandRejectsNonWAV(t *testing.T) {
	_, err := execute(t, "enhance", filepath.Join(t.TempDir(), "talk.mp3"))
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRunCommandValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"chunk size", []string{"run", "x.wav", "--chunk-size", "10"}, "--chunk-size"},
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "gone.wav")}, "does not exist"},
		{"no args", []string{"run"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEnhanceCommandWorkersHelp(t *testing.T) {
	out, err := execute(t, "enhance", "--help")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "0 = one less than the CPU count, at least 1") {
		t.Errorf("workers help does not describe the default:\n%s", out)
	}
}

func TestEnhanceWorkersDefault(t *testing.T) {
	if got := enhance.DefaultWorkers(); got < 1 {
		t.Errorf("DefaultWorkers() = %d, want at least 1", got)
	}
}
