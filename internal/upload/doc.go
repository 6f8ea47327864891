// Package upload submits one queued report to the report server and
// classifies the answer as Delivered, Rejected, or TransportFailure.
//
// The Client paces requests with a token bucket so a long drain after an
// outage does not flood the endpoint.
package upload
