package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether Logf and the timing report print anything.
var Verbose = true

// Output is where Logf and the timing report write. Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// Logf prints a formatted line to Output when Verbose is set.
func Logf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, format+"\n", args...)
}

// TimingStats accumulates wall time per phase of a verification run.
type TimingStats struct {
	TotalTime    time.Duration
	InitTime     time.Duration
	ForwardTime  time.Duration
	BackwardTime time.Duration
	OracleTime   time.Duration
	StepTime     time.Duration
}

// PrintTimingStats prints the breakdown. steps is the number of backward
// passes that were timed; the per-step averages are skipped when it is 0.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Initialization: %v (%.1f%%)\n", stats.InitTime, share(stats.InitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Forward pass: %v (%.1f%%)\n", stats.ForwardTime, share(stats.ForwardTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Backward pass: %v (%.1f%%)\n", stats.BackwardTime, share(stats.BackwardTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Numerical oracle: %v (%.1f%%)\n", stats.OracleTime, share(stats.OracleTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Optimizer steps: %v (%.1f%%)\n", stats.StepTime, share(stats.StepTime, stats.TotalTime))
	if steps > 0 {
		fmt.Fprintln(Output, "\nPerformance metrics:")
		fmt.Fprintf(Output, "  Average backward pass time: %.1fµs\n", DurationUS(stats.BackwardTime)/float64(steps))
		fmt.Fprintf(Output, "  Average step time: %.1fµs\n", DurationUS(stats.StepTime)/float64(steps))
	}
}

func share(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
