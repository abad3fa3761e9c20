// Package engine defines the contract between a room and the mini-game it
// hosts.
//
// The engine package provides:
//   - Instance, the lifecycle every game implements
//   - Host, the room-side callbacks an instance may use
//   - Factory, which maps a game type to an instance constructor
//   - Player and ReportCard, the roster entry owned by the room
//   - ColorPool, the bounded palette players draw colours from
//   - Result ranking shared by every game's end-of-round broadcast
//
// Execution Model:
//
// A room runs every inbound packet and every timer callback on one serial
// loop. Instances are only ever called from that loop, so their state needs
// no locking. Timers must be obtained from Host.Scheduler so that they are
// delivered on the same loop and can be driven by a virtual clock in tests.
//
// Usage:
//
//	factory := engine.Factory{
//		config.CellMatch: cellmatch.New,
//	}
//
//	inst, err := factory.New(config.CellMatch, host)
//	if err != nil {
//		return err
//	}
//	if err := inst.Initialize(cfg); err != nil {
//		return err
//	}
//	inst.Start()
package engine
