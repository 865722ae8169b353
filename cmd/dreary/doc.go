// Package main hosts the dreary CLI entrypoint and command graph.
//
// Each importer is a subcommand: discord, library, renpy, and tunes write
// records into the configured account's repository, while records, runs, and
// status inspect the repository and the local ledger. The command context
// centralizes configuration loading, logger construction, login, the
// per-account run lock, and run journaling so subcommands only describe what
// they import.
package main
