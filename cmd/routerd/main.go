package main

import (
	"context"
	"os"

	"routerd/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		log := logging.New(os.Stderr, jsonLogsRequested(os.Args[1:]), "error")
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}

// jsonLogsRequested reports whether --json-output was passed, so fatal
// errors use the same format as the rest of the run.
func jsonLogsRequested(args []string) bool {
	for _, a := range args {
		if a == "--json-output" || a == "--json-output=true" {
			return true
		}
	}
	v, _ := os.LookupEnv("JSON_OUTPUT")
	return v == "true" || v == "1"
}
