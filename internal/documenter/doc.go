// Package documenter drives the changed-function documentation pipeline.
//
// A run resolves the old revision, lists the changed C/C++ files, keys the
// functions of both snapshots and keeps the files with at least one added or
// modified function. Each such file is then processed on its own worker:
//
//  1. Parse the new snapshot once and locate the changed definitions by line
//  2. Copy their spans out of the tree and discard it
//  3. Strip trailing comments from each function, newest row first
//  4. Ask the generator for a Doxygen block and inline comments
//  5. Optionally ask for a review and append it to the review log
//  6. Splice every edit into the file in descending row order and write it
//
// # Basic Usage
//
//	git := revision.NewGit("/src/engine", "git", nil)
//	doc, err := documenter.New(documenter.Config{
//	    Repository: git,
//	    Generator:  gen,
//	    Storage:    store,
//	})
//
//	state := reviewlog.NewState("code_review_log.json", git.Root())
//	opts := documenter.DefaultOptions()
//	opts.Review = true
//
//	stats, err := doc.Run(ctx, opts, state)
//	fmt.Printf("Documented %d functions in %d files\n",
//	    stats.FunctionsDocumented, stats.FilesDocumented)
//
// # Failure Handling
//
// A generator transport failure aborts the remaining queue. A file that
// cannot be parsed or written is recorded as failed and the run moves on.
// Files already written are never reverted. The cursor only advances when
// every queued file succeeded.
//
// # Dry Runs
//
// With DryRun set, files are left untouched and the unified diff of every
// planned edit is written to Options.DiffOutput and returned per file.
package documenter
