// Package transcript delivers conversation transcripts after a work item
// resolves. Delivery is fire-and-forget: the coordinator invokes it
// asynchronously and a failure never rolls back the resolution.
//
// Two implementations ship: LogDelivery, which records the transcript in
// the server log, and AMQPDelivery, which publishes it to a RabbitMQ
// topic exchange for the downstream email service.
package transcript
