// Package logx configures routinebot's structured logging.
//
// A thin Logger wrapper over zerolog keeps console output short (timestamp and
// file:line caller), file output JSON, and optionally mirrors warnings to a
// Telegram chat through a rate-limited sink.
package logx
