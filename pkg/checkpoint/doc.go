// Package checkpoint records which pipeline stages have completed for a
// run date so an interrupted run can resume.
//
// One JSON file is kept per date, named <date>.checkpoint.json, holding
// the completion time, row count and output location of each finished
// stage. Files are written atomically and carry a version number.
//
// Without an explicit directory checkpoints are stored in the platform
// data directory:
//   - Linux: ~/.local/share/redditetl/checkpoints/
//   - macOS: ~/Library/Application Support/redditetl/checkpoints/
//   - Windows: %APPDATA%/redditetl/checkpoints/
package checkpoint
