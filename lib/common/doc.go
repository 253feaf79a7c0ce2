// Package common provides the configuration structure and the logging setup
// shared by the fieldlog command line tool.
//
// Key Components:
//
//   - Config: all settings of the CLI (storage engine, data directory, origin,
//     capacity, storage key, writer lock, catalog, log level). Validate rejects
//     settings that can't work and String renders a sectioned overview that
//     is logged at debug level on startup.
//
//   - Logger: a logger.ILogger implementation for dragonboat's logger package
//     printing "LEVEL | package | message". InitLoggers installs it as the
//     factory and sets the level of all package loggers.
package common
