// Package notify delivers alert messages to individual recipients.
//
// Transports:
//   - smtp: plain-text mail through gomail
//   - webhook: JSON POST through resty
//   - mqtt: JSON on climate/notify/unit/{id}
//   - log: records the message in the service log
//
// Every failure wraps ErrSendFailed.
package notify
