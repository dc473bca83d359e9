package main

import (
	"fmt"
	"os"
	"strings"

	"survey-admin/internal/cli"
)

func isRoutePath(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "/") && len(s) > 1
}

// rewriteRouteArgs lets `surveyadmin /trash?tab=archive` open the dashboard
// at that route, like `surveyadmin --path /trash?tab=archive`.
//
// Persistent flags may come first (`surveyadmin --dir ... /trash`), so the
// first positional token is what matters, not argv[1].
func rewriteRouteArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":      true,
		"--api":      true,
		"--storage":  true,
		"--env-file": true,
		"--format":   true,
		"--path":     true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		if isRoutePath(a) {
			out := make([]string, 0, len(argv)+1)
			out = append(out, argv[:i]...)
			out = append(out, "--path")
			out = append(out, argv[i:]...)
			return out
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteRouteArgs(os.Args)

	cmd := cli.NewRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
}
