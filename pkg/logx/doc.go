// Package logx configures rafflebot's structured logging.
//
// A small value-type wrapper (logx.Logger) sits on top of zerolog so that:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON-structured
//   - An optional Telegram sink forwards warnings (min-level + rate limiting)
package logx
