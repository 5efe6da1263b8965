// Copyright (c) 2025 Civic Works Ltd.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package mailer renders and sends outbound email.

The Mailer interface has three implementations: SMTPMailer (production),
LogMailer (development, used when SMTP_ADDR is unset), and Recorder (tests).

Templates live in templates.go. ValidationEmail builds the confirm-your-email
message; DeliveryEmail builds the message for a queued email_delivery row
(threshold crossings, government responses, debate outcomes). Every
notification carries the recipient's unsubscribe link.
*/
package mailer
