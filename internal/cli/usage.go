package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/chatbot-go/internal/metrics"
)

// printStats displays the request statistics collected during this run.
func printStats(s metrics.Snapshot) {
	out := os.Stderr
	fmt.Fprintf(out, "\nClient Statistics (this run)\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(out, "Uptime: %.1f seconds\n", s.UptimeSeconds)

	sections := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Auth", s.Auth},
		{"GraphQL Queries", s.Query},
		{"GraphQL Mutations", s.Mutation},
		{"AI Action", s.AIAction},
		{"Subscription Events", s.SubscriptionEvents},
	}

	printed := false
	for _, sec := range sections {
		if sec.op == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", sec.name)
		printOpStats(sec.op)
		printed = true
	}
	if !printed {
		fmt.Fprintf(out, "\nNo requests made.\n")
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Fprintf(os.Stderr, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(os.Stderr, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
