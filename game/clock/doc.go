// Package clock provides the execution model every room runs on.
//
// An Executor serialises work: each room owns a Loop, and every inbound
// packet, join, leave and timer callback for that room is posted to it and
// runs to completion before the next one starts. Game state is therefore
// only ever touched from one goroutine and needs no locks.
//
// A Scheduler creates one-shot and periodic timers whose callbacks are
// delivered through an Executor. Real uses wall-clock timers; Manual is a
// virtual clock that fires callbacks synchronously from Advance, so tests
// can step a countdown or a physics tick deterministically.
package clock
