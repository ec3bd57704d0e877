package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExecRunner_Success(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	out, err := NewExecRunner().Run(context.Background(), "echo", "hello", "drone")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello drone" {
		t.Errorf("unexpected output %q", string(out))
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), "definitely-not-a-real-binary-droneaid")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}

	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *command.Error, got %T", err)
	}
	if cmdErr.Name != "definitely-not-a-real-binary-droneaid" {
		t.Errorf("unexpected name %q", cmdErr.Name)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	_, err := NewExecRunner().Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected wrapped *exec.ExitError, got %T", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should carry the command output, got %q", err.Error())
	}
}

func TestExecRunner_TeesOutput(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	var live strings.Builder
	r := &ExecRunner{Output: &live}
	out, err := r.Run(context.Background(), "echo", "epoch", "1/100")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if live.String() != string(out) {
		t.Errorf("tee got %q, captured %q", live.String(), string(out))
	}
}
