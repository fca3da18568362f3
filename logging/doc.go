// Package logging is the small structured-logging surface used by the
// navigation engine and the agent tick loop.
//
// Code depends only on the Logger interface. SlogAdapter backs it with
// log/slog and NoOpLogger discards everything, which is the default for
// grids and worlds built without an explicit logger.
//
//	log := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	grid, err := nav.NewGrid(nav.Settings{Width: 64, Height: 64, Logger: log})
package logging
