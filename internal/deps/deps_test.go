package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present)
	plain := filepath.Join(binDir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "NotExecutable", Command: plain},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available {
		t.Fatal("expected non-executable file to be unavailable")
	}
	if results[3].Available || results[3].Detail != "command not configured" {
		t.Fatalf("unexpected status for blank command %#v", results[3])
	}
}

func TestCheckBinariesResolvesPath(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "audiveris"))
	t.Setenv("PATH", binDir)

	status := CheckBinaries([]Requirement{{Name: "Audiveris", Command: "audiveris"}})[0]
	if !status.Available || status.Command != filepath.Join(binDir, "audiveris") {
		t.Fatalf("expected resolved path, got %#v", status)
	}
}

func TestCheckJavaPrefersJavaHome(t *testing.T) {
	home := t.TempDir()
	java := filepath.Join(home, "bin", "java")
	writeStub(t, java)
	t.Setenv("JAVA_HOME", home)

	status := CheckJavaForEngine("")
	if !status.Available || status.Command != java {
		t.Fatalf("expected JAVA_HOME java, got %#v", status)
	}
}

func TestCheckJavaBundledRuntime(t *testing.T) {
	install := t.TempDir()
	engine := filepath.Join(install, "bin", "audiveris")
	runtimeJava := filepath.Join(install, "lib", "runtime", "bin", "java")
	writeStub(t, engine)
	writeStub(t, runtimeJava)
	t.Setenv("JAVA_HOME", "")
	t.Setenv("PATH", "")

	status := CheckJavaForEngine(engine)
	if !status.Available || status.Command != runtimeJava {
		t.Fatalf("expected bundled runtime, got %#v", status)
	}
}

func TestCheckJavaPathFallback(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "java"))
	t.Setenv("JAVA_HOME", "")
	t.Setenv("PATH", binDir)

	status := CheckJavaForEngine(filepath.Join(t.TempDir(), "bin", "audiveris"))
	if !status.Available || status.Command != filepath.Join(binDir, "java") {
		t.Fatalf("expected PATH java, got %#v", status)
	}
}

func TestCheckJavaNotFound(t *testing.T) {
	t.Setenv("JAVA_HOME", "")
	t.Setenv("PATH", "")
	status := CheckJavaForEngine("")
	if status.Available {
		t.Fatal("expected java resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when java is unavailable")
	}
}
