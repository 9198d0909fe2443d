// Package engine runs the comparisons described by an interpreted
// configuration.
//
// # Overview
//
// A Runner takes a *config.Config, resolves the members of every group to
// their item values and hands them to the configured comparer. Results are
// delivered to a callback in group order, whatever the number of workers:
//
//	runner := engine.NewRunner(engine.WithWorkers(4))
//	w := engine.NewWriter(os.Stdout, engine.FormatTSV)
//	summary, err := runner.Run(ctx, cfg, w.Write)
//	if err != nil {
//	    return err
//	}
//	if err := w.Flush(); err != nil {
//	    return err
//	}
//	log.Println(summary)
//
// # Failures
//
// A group whose comparison fails yields a NaN similarity and a warning, and
// the run goes on. Failures are classified with Error:
//
//   - Transient errors, such as a busy database, are retried with
//     exponential backoff up to the configured number of retries.
//   - Permanent errors, such as an unknown item or a comparer rejecting its
//     arguments, produce NaN at once.
//
// The run itself stops when its context is cancelled, when the callback
// fails, or when a result cannot be recorded.
//
// # Recording
//
// WithRecorder stores the run and each result, typically in a
// *stores.SQLiteStore, so that past runs can be listed and compared.
//
// # Output
//
// Writer renders results as tab separated lines, with the similarity
// formatted as %5f, or as JSON lines.
package engine
