// Package config provides configuration structures and utilities for
// bookbinder. It defines the main options for following chapter chains,
// assembling output, and archiving runs, plus the per-site selector
// configuration loaded from the .bookbinder YAML file.
package config
