// Package session implements the quote session lifecycle.
//
// A Session is created with its startup frames already queued, connects
// once, and then runs three tasks until any of them stops:
//
//	writer  drains the outbound queue onto the socket in FIFO order
//	reader  decodes inbound messages and routes each unit for dispatch
//	router  runs the registered processors for each unit, in order
//
// The session then moves to StateClosed. There is no reconnect.
package session
