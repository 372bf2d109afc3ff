// Package history persists finished pipeline runs in a local SQLite
// database so the CLI can list prior outcomes. It implements
// pipeline.Recorder; the pipeline itself never depends on this package.
package history
