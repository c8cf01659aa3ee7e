// Package bot is the Telegram front end of the routine engine: it routes
// commands and inline-button callbacks to handlers on a bounded worker pool,
// renders days as HTML and announces routine changes to the babies' chats.
package bot
