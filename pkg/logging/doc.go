// Package logging provides structured logging configuration for frontd.
//
// This package wraps log/slog so every frontd component logs the same way.
// Levels and formats are parsed from flags or config files without regard
// to case.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("server started", "addr", srv.Addr())
//
// To additionally keep a JSON log on disk:
//
//	logger, closer, err := logging.Open(logging.Config{File: "frontd.log"})
//	defer closer.Close()
//
// # Integration
//
// Components accept a *slog.Logger through a WithLogger option. If none is
// provided they use logging.Nop().
package logging
