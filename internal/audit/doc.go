// Package audit buffers security events and relays them to a caller-supplied [Sink].
//
// The [Dispatcher] runs a single goroutine. Emitting never fails: a full buffer either blocks
// until the request context ends or drops the event, depending on [Config.DropIfFull], and
// sink errors are logged and counted.
package audit
