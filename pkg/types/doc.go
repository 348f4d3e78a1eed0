// Package types provides shared type definitions for docsplice.
//
// This package defines the value types that flow between the parser, the
// function keyer, the change differ and the annotation splicer. None of them
// hold references into a syntax tree: once a file has been parsed, the data a
// later stage needs is copied into these types and the tree is released.
//
// # Function Identity
//
// FunctionRecord is the cross-revision identity of one function definition:
//
//	rec := types.FunctionRecord{
//	    Key:         "Widget::resize(int w, int h)",
//	    ContentHash: "9f1c0d...",
//	    StartLine:   42,
//	}
//
// Key is the raw declarator text, so two revisions that contain the same
// declarator are matched even when the function moved. ContentHash covers the
// whole definition, including an enclosing template header.
//
// # Change Classification
//
// ChangeSet partitions the keys of an old and a new FunctionSet into added,
// deleted, modified and unchanged keys. The four slices never overlap and
// together cover the union of both key sets.
//
// # Annotations
//
// AnnotationEdit describes one replacement of a contiguous row range of a
// file: an optional documentation block followed by the cleaned function
// lines with InlineComment entries appended to selected lines.
//
// # Persisted Records
//
// ReviewRecord and Cursor are the JSON shapes of the review log and of the
// last processed date. Their field names are part of the on-disk format.
package types
