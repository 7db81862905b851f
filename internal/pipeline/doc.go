// Package pipeline runs a scanned document through rasterization, cleaning,
// deskewing, and conversion.
//
// A Processor owns one immutable set of stage components and is safe for
// concurrent use; Batch fans documents out across a bounded worker group. Each
// document gets its own job ID and work directories:
//
//	data_dir/originals/<job-id>/   archived source document
//	data_dir/processed/<job-id>/   cleaned page images and the bundled PDF
//	data_dir/xmlmusic/<job-id>/    engine output
//
// Rasterization and decode failures are page-local: the page is skipped and
// reported, and the document fails only when no page survives.
package pipeline
