// Package security derives the read-only posture report the engine
// exposes through Engine.SecurityReport.
package security
