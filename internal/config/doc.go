// Package config provides configuration structures and utilities for siteaudit.
// It defines the run options (HTTP behaviour, worker limits, chunking, model
// provider, output location) and the YAML site file that lists organizations,
// their base URLs, mission statements and stakeholders.
package config
