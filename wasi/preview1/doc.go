// Package preview1 assembles the wasi_snapshot_preview1 import table and
// drives a guest's lifecycle.
//
// The table is built from Features. A Feature is a plain function of the
// shared Env (options, codec, memory accessor) that returns named handlers;
// features listed later override earlier ones with the same name. Every
// preview1 function no feature provides answers ENOSYS.
//
// Features live in subpackages:
//
//	cli          args_get, args_sizes_get, environ_get, environ_sizes_get
//	clocks       clock_res_get, clock_time_get
//	random       random_get
//	filesystem   stdio, the in-memory filesystem and descriptor table
//
// proc_exit and sched_yield are always present.
//
// Handlers report guest-visible failures as abi.Errno values. A Go error from
// a handler aborts the guest call; the exit signal raised by proc_exit is an
// *ExitError that Start turns into the exit code.
package preview1
