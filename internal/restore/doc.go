// Package restore runs restoration stages against a run directory.
//
// A run is created from one input scan with NewRun. The scan is copied into
// the run and every stage writes new files beside it; nothing is ever
// overwritten in the input. state.json records the mask and candidate
// histories so that a stage can pick up the latest mask and the current image
// without being told.
//
// The stage functions (Ingest, BackgroundClean, FillBorder, CropBorder,
// AutoCropPaper) are pure image operations. Runner wraps them with file I/O,
// history bookkeeping and logging, and RunAll chains them into the one-shot
// pipeline.
//
// # Run Layout
//
//	<runs>/<job id>/
//	    input/<scan>              copy of the original
//	    preprocess/normalized.png
//	    preprocess/damage_map.png
//	    segment/mask_NN.png
//	    segment/mask_preview_NN.png
//	    restore/*.png             candidates and diagnostics
//	    state.json, report.json, README.txt, contact_sheet.pdf
package restore
