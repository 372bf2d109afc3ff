// Package config loads, validates, and normalizes Patina's TOML
// configuration.
//
// Configuration flows through three steps: Default() seeds repository
// defaults, Load() overlays the user's config file, then normalize() expands
// paths and Validate() rejects unusable values before anything else starts.
// Keep new settings flowing through the same steps so every consumer sees
// expanded, validated values.
package config
