package main

import (
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestMain_Help runs the binary in a subprocess since main exits through cmd.Execute.
func TestMain_Help(t *testing.T) {
	if os.Getenv("KEYTRAINER_RUN_MAIN") == "1" {
		os.Args = []string{"keytrainer", "--help"}
		main()
		return
	}

	home := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=TestMain_Help")
	cmd.Env = append(os.Environ(), "KEYTRAINER_RUN_MAIN=1", "HOME="+home, "XDG_CONFIG_HOME="+home)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("main --help failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "keytrainer") {
		t.Errorf("help output does not name the program:\n%s", out)
	}
}
