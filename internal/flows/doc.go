// Package flows holds the orchestration behind each Engine operation.
//
// Every Run* function takes a dependency struct of plain functions and
// narrow interfaces and returns a result carrying a failure kind. The root
// package maps kinds to public errors, metrics and audit events, so flows
// never import it.
//
// Flows keep no state between calls and perform I/O only through their
// dependencies.
package flows
