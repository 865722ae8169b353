// Package config loads, normalizes, and validates dreary configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DREARY_HANDLE and SPOTIFY_CLIENT_ID. Credentials may also come from a .env
// file in the working directory, read without touching the process
// environment.
//
// Always obtain settings through this package so importers receive sanitized
// paths and clear validation errors.
package config
