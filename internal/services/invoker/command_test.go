package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "model only",
			req:  Request{Model: "org/sample", CacheDir: "/cache"},
			want: []string{
				"download", "--local-dir-use-symlinks", "False", "--resume-download", "--force-download",
				"--max-workers", "1", "--cache-dir", "/cache", "org/sample",
			},
		},
		{
			name: "token and local dir",
			req:  Request{Model: "org/sample", CacheDir: "/cache", Token: "hf_x", LocalDir: "/out/sample"},
			want: []string{
				"download", "--local-dir-use-symlinks", "False", "--resume-download", "--force-download",
				"--max-workers", "1", "--cache-dir", "/cache", "--token", "hf_x", "org/sample",
				"--local-dir", "/out/sample",
			},
		},
		{
			name: "repo type and revision",
			req:  Request{Model: "org/data", CacheDir: "/cache", RepoType: "dataset", Revision: "v1"},
			want: []string{
				"download", "--local-dir-use-symlinks", "False", "--resume-download", "--force-download",
				"--max-workers", "1", "--cache-dir", "/cache", "--repo-type", "dataset", "--revision", "v1",
				"org/data",
			},
		},
		{
			name: "model with shell metacharacters stays one argument",
			req:  Request{Model: "org/a b;rm -rf", CacheDir: "/cache"},
			want: []string{
				"download", "--local-dir-use-symlinks", "False", "--resume-download", "--force-download",
				"--max-workers", "1", "--cache-dir", "/cache", "org/a b;rm -rf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildArgs(tt.req)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildArgs() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	args := BuildArgs(Request{Model: "org/sample", Token: "hf_secret"})
	got := Redact(args)

	if strings.Contains(strings.Join(got, " "), "hf_secret") {
		t.Fatalf("token leaked: %q", got)
	}
	if !strings.Contains(strings.Join(args, " "), "hf_secret") {
		t.Fatal("Redact modified its input")
	}

	cmd := Command{Path: "huggingface-cli", Args: args}
	if strings.Contains(cmd.String(), "hf_secret") {
		t.Fatalf("Command.String leaked token: %s", cmd.String())
	}
}

func TestExecRunner(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{name: "success", code: 0},
		{name: "failure", code: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ExecRunner{}.Run(context.Background(), helperCommand("exit", strconv.Itoa(tt.code)))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if code != tt.code {
				t.Errorf("Run() code = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestExecRunnerPassesEnvironment(t *testing.T) {
	cmd := helperCommand("env", "HF_ENDPOINT")
	cmd.Env = append(cmd.Env, "HF_ENDPOINT=https://mirror.test")

	var out strings.Builder
	cmd.Stdout = &out

	if _, err := (ExecRunner{}).Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "https://mirror.test" {
		t.Errorf("child saw HF_ENDPOINT = %q", got)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Path: "/nonexistent/hf-client", Stdout: io.Discard})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func helperCommand(args ...string) Command {
	return Command{
		Path:   os.Args[0],
		Args:   append([]string{"-test.run=TestHelperProcess", "--"}, args...),
		Env:    append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"),
		Stdout: io.Discard,
		Stderr: io.Discard,
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}

	switch args[1] {
	case "exit":
		code, _ := strconv.Atoi(args[2])
		os.Exit(code)
	case "env":
		fmt.Println(os.Getenv(args[2]))
		os.Exit(0)
	}
	os.Exit(2)
}

var errNotStarted = errors.New("not started")
