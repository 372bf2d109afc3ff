// Package gemini implements the remote stage client for the Google
// generative API: photo detection, generative edge fill, restoration, and
// advisory crop/restoration verification.
//
// Every method is a single network round trip with an operation-specific
// timeout. The client never retries internally; retry policy belongs to the
// pipeline. Failures are tagged with the services error markers so callers
// can classify them without string matching.
package gemini
