// Package logging builds the slog loggers used across boardsight.
//
// Two formats are supported: a console format printing "[LEVEL] message"
// followed by key=value pairs, coloured by level when the output is a
// terminal, and a JSON format for log collectors. Components attach a
// "component" attribute so console lines can be traced back to their source.
package logging
