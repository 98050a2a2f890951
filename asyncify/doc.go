// Package asyncify bridges host calls that complete later into guests built
// with the Binaryen asyncify transform (wasm-opt --asyncify).
//
// Such a guest exports five control functions. When a wrapped import returns
// a deferred Result, the bridge starts an unwind: the guest saves its call
// stack into the data region and returns all the way out of the export. The
// export wrapper then awaits the Future, starts a rewind and calls the
// export again; the guest replays its stack, re-issues the same import, and
// the import wrapper hands back the awaited value instead of calling the
// handler. The guest never observes the suspension.
//
//	Idle ──import deferred──▶ Unwinding ──export returns──▶ Idle (await)
//	  ▲                                                       │
//	  └────import returns value◀── Rewinding ◀──re-invoke─────┘
//
// Data region layout at Layout.DataAddr:
//   - [0:4] stack pointer, reset to DataAddr+8 before every fresh call
//   - [4:8] stack end
//
// Guests without the control exports use Blocking instead, which awaits
// futures in place.
package asyncify
