// Package logs reads the omrpipe log file for the `logs` command: the last N
// lines, optionally narrowed to one job, and new lines as they are appended.
package logs
