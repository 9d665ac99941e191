// Package pipeline sequences the extract, upload and load stages for a run
// date and records progress in a checkpoint so a failed run can resume
// from the stage that failed.
package pipeline
