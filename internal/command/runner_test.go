package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestExecRunner_CapturesStdout(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	out, err := r.Run(context.Background(), Spec{Path: "echo", Args: []string{"hello"}}, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.Stdout) != "hello" {
		t.Fatalf("stdout %q, want hello", out.Stdout)
	}
	if out.ExitCode != 0 {
		t.Fatalf("exit code %d, want 0", out.ExitCode)
	}
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	out, err := r.Run(context.Background(), Spec{Path: "false"}, 10*time.Second)
	if err != nil {
		t.Fatalf("non-zero exit must not be a Run error, got %v", err)
	}
	if out.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestExecRunner_StderrCaptured(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	out, err := r.Run(context.Background(),
		Spec{Path: "ls", Args: []string{"/nonexistent-nixgate-test-path"}}, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.ExitCode == 0 {
		t.Fatal("expected non-zero exit")
	}
	if out.Stderr == "" {
		t.Fatal("expected stderr output")
	}
}

func TestExecRunner_StdinWired(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	out, err := r.Run(context.Background(),
		Spec{Path: "cat", Stdin: "child.close()"}, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout != "child.close()" {
		t.Fatalf("stdout %q, want stdin echoed back", out.Stdout)
	}
}

func TestExecRunner_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	marker := "nixgate-marker-file"
	if err := os.WriteFile(filepath.Join(dir, marker), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewExecRunner(zap.NewNop())
	out, err := r.Run(context.Background(), Spec{Path: "ls", Dir: dir}, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Stdout, marker) {
		t.Fatalf("expected listing of %s, got %q", dir, out.Stdout)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	start := time.Now()
	_, err := r.Run(context.Background(),
		Spec{Path: "sleep", Args: []string{"30"}}, 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Fatal("timeout must not read as cancellation")
	}
	if elapsed > 10*time.Second {
		t.Fatalf("child not killed promptly, took %s", elapsed)
	}
}

func TestExecRunner_CallerCancellation(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, Spec{Path: "sleep", Args: []string{"30"}}, time.Minute)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatal("cancellation must not read as timeout")
	}
}

func TestExecRunner_SpawnFailure(t *testing.T) {
	r := NewExecRunner(zap.NewNop())

	_, err := r.Run(context.Background(),
		Spec{Path: "/nonexistent/nixgate-no-such-binary"}, time.Second)
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrCancelled) {
		t.Fatalf("spawn failure misclassified: %v", err)
	}
}
