package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckJavaForEngine reports the Java runtime the Audiveris launcher will use.
//
// The Gradle launcher script prefers $JAVA_HOME/bin/java and falls back to
// "java" on PATH; jpackage installs ship a runtime under lib/runtime next to
// the bin directory. The lookup follows that order so status output matches
// what the engine will actually run.
func CheckJavaForEngine(engineCommand string) Status {
	result := Status{
		Name:        "Java",
		Description: "Runtime for the Audiveris engine",
	}

	if home := strings.TrimSpace(os.Getenv("JAVA_HOME")); home != "" {
		candidate := filepath.Join(home, "bin", "java")
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	if candidate, ok := bundledRuntime(engineCommand); ok {
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	if javaPath, err := exec.LookPath("java"); err == nil {
		result.Command = javaPath
		result.Available = true
		return result
	}

	result.Command = "java"
	result.Detail = fmt.Sprintf("binary %q not found (set JAVA_HOME)", "java")
	return result
}

func bundledRuntime(engineCommand string) (string, bool) {
	engine := strings.TrimSpace(engineCommand)
	if engine == "" {
		return "", false
	}
	resolved, err := exec.LookPath(engine)
	if err != nil {
		return "", false
	}
	installRoot := filepath.Dir(filepath.Dir(resolved))
	return filepath.Join(installRoot, "lib", "runtime", "bin", "java"), true
}
