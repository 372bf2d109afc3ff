// Command patina restores scanned photographs: it detects sub-photos in a
// scan, crops and straightens them, optionally fills non-rectangular edges,
// and runs AI restoration, keeping a local history of finished runs.
package main
