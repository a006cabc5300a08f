package shell

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "override existing key",
			base:      []string{"A=1", "B=2"},
			overrides: []string{"A=override"},
			want:      []string{"A=override", "B=2"},
		},
		{
			name:      "add new key",
			base:      []string{"A=1"},
			overrides: []string{"B=2"},
			want:      []string{"A=1", "B=2"},
		},
		{
			name:      "empty base",
			base:      nil,
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name:      "empty overrides",
			base:      []string{"A=1"},
			overrides: nil,
			want:      []string{"A=1"},
		},
		{
			name:      "both empty",
			base:      nil,
			overrides: nil,
			want:      []string{},
		},
		{
			name:      "value with equals sign",
			base:      []string{"CMD=foo=bar"},
			overrides: nil,
			want:      []string{"CMD=foo=bar"},
		},
		{
			name:      "malformed entries skipped",
			base:      []string{"NOEQUALS", "A=1"},
			overrides: []string{"ALSO_BAD", "B=2"},
			want:      []string{"A=1", "B=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnv(tt.base, tt.overrides)
			sort.Strings(got)
			sort.Strings(tt.want)

			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d\ngot:  %v\nwant: %v", len(got), len(tt.want), got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLocalRunEmptyCommand(t *testing.T) {
	l := &Local{}
	if err := l.Run(context.Background(), Command{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestLocalRunStreamsOutput(t *testing.T) {
	var stdout bytes.Buffer
	l := &Local{Stdout: &stdout, Stderr: &stdout}

	err := l.Run(context.Background(), Command{
		Args: []string{"sh", "-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestLocalRunEnvOverride(t *testing.T) {
	var stdout bytes.Buffer
	l := &Local{Stdout: &stdout, Stderr: &stdout}

	err := l.Run(context.Background(), Command{
		Args: []string{"sh", "-c", "echo $WHEELSMITH_TEST_VAR"},
		Env:  []string{"WHEELSMITH_TEST_VAR=propagated"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "propagated" {
		t.Errorf("stdout = %q, want %q", got, "propagated")
	}
}

func TestLocalRunNonZeroExit(t *testing.T) {
	l := &Local{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}

	err := l.Run(context.Background(), Command{
		Args: []string{"sh", "-c", "exit 3"},
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "sh -c") {
		t.Errorf("error does not name the command: %v", err)
	}
}
