// Package config defines runtime settings for the builder and provides
// helpers to load them from the environment, an optional YAML file and
// defaults, plus validation and derived artifact paths.
//
// The Config type holds the public catalog folder URL, the HTTP listen
// address and the data directory where build artifacts live.
package config
