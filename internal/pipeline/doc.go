// Package pipeline provides a framework for executing stitch stages in
// sequence.
//
// A stitch run moves a book through multiple stages: walking the
// chapter chain, assembling and writing the document, archiving the run,
// and emitting reports. Each stage is implemented as a Step that
// receives the current book and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running runs
//
// The pipeline supports both individual runs and batch processing of
// multiple start URLs with concurrency control using errgroup.
package pipeline
