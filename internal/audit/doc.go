// Package audit relays security events (logins, refreshes, reset-code
// activity) to a [Sink] on a background goroutine.
//
// The [Dispatcher] either blocks or drops when its buffer is full. Event
// types marked critical (refresh token reuse, completed resets) are never
// dropped. Drops are counted per event type and a panicking sink is
// recovered and counted. Which events exist is decided by the engine.
package audit
