// Package harness wires one test run together.
//
// A Context is created at suite start from the configuration and owns the
// structured log sink (stderr, plus a size-rotated file when configured),
// the writer human-readable diagnostics go to, and the command runner and
// asserter built on them. Sessions and scenario engines are obtained from
// it, so every component logs to the same place without global state.
//
//	hc, err := harness.New(harness.Options{Config: cfg})
//	defer hc.Close()
//	sess, err := hc.OpenSession(ctx)
//	defer sess.Close(ctx)
//	report := hc.Engine(sess).RunMatrix(ctx, matrix)
//
// Reports can be pinned with AssertReportGolden; regenerate golden files
// with:
//
//	go test ./... -update
package harness
