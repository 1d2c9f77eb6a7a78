// Package queue publishes outbound email and audit events to RabbitMQ so
// delivery happens in a separate worker. [Mailer] satisfies
// siteAuth.EmailTransport and [AuditSink] satisfies siteAuth.AuditSink.
package queue
