package cmd

import "fmt"

// printNotifier renders the orchestrator's per-job notifications on
// stdout, the CLI's stand-in for toast notifications.
type printNotifier struct{}

func (printNotifier) Progress(id, message string) {
	fmt.Printf("[%s] %s...\n", id, message)
}

func (printNotifier) Success(id, message string) {
	fmt.Printf("[%s] %s\n", id, message)
}

func (printNotifier) Failure(id, message string) {
	fmt.Printf("[%s] error: %s\n", id, message)
}
