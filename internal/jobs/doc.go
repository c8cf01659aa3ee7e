// Package jobs runs routinebot's housekeeping on cron triggers: pruning day
// overrides whose date has passed and posting the daily routine digest.
package jobs
