// Package checkpoint records which month frames a run has already captured.
//
// A checkpoint is tied to its inputs (country, dataset path and month range)
// and carries a run ID. With --resume the pipeline reloads a matching
// checkpoint and skips months whose frame is both recorded and still on disk.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/conflictmap/checkpoints/
//   - macOS: ~/Library/Application Support/conflictmap/checkpoints/
//   - Windows: %APPDATA%/conflictmap/checkpoints/
//
// Files are written atomically and carry a format version.
package checkpoint
