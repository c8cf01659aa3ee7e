// Package tgui holds small helpers for building Telegram HTML messages and
// inline-button callback data.
package tgui
