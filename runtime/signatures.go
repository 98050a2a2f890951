package runtime

import (
	"github.com/tetratelabs/wazero/api"
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func errnoSig(params ...api.ValueType) signature {
	return signature{params: params, results: []api.ValueType{i32}}
}

// signatures holds the wasm type of every preview1 import.
var signatures = map[string]signature{
	"args_get":                errnoSig(i32, i32),
	"args_sizes_get":          errnoSig(i32, i32),
	"clock_res_get":           errnoSig(i32, i32),
	"clock_time_get":          errnoSig(i32, i64, i32),
	"environ_get":             errnoSig(i32, i32),
	"environ_sizes_get":       errnoSig(i32, i32),
	"fd_advise":               errnoSig(i32, i64, i64, i32),
	"fd_allocate":             errnoSig(i32, i64, i64),
	"fd_close":                errnoSig(i32),
	"fd_datasync":             errnoSig(i32),
	"fd_fdstat_get":           errnoSig(i32, i32),
	"fd_fdstat_set_flags":     errnoSig(i32, i32),
	"fd_fdstat_set_rights":    errnoSig(i32, i64, i64),
	"fd_filestat_get":         errnoSig(i32, i32),
	"fd_filestat_set_size":    errnoSig(i32, i64),
	"fd_filestat_set_times":   errnoSig(i32, i64, i64, i32),
	"fd_pread":                errnoSig(i32, i32, i32, i64, i32),
	"fd_prestat_dir_name":     errnoSig(i32, i32, i32),
	"fd_prestat_get":          errnoSig(i32, i32),
	"fd_pwrite":               errnoSig(i32, i32, i32, i64, i32),
	"fd_read":                 errnoSig(i32, i32, i32, i32),
	"fd_readdir":              errnoSig(i32, i32, i32, i64, i32),
	"fd_renumber":             errnoSig(i32, i32),
	"fd_seek":                 errnoSig(i32, i64, i32, i32),
	"fd_sync":                 errnoSig(i32),
	"fd_tell":                 errnoSig(i32, i32),
	"fd_write":                errnoSig(i32, i32, i32, i32),
	"path_create_directory":   errnoSig(i32, i32, i32),
	"path_filestat_get":       errnoSig(i32, i32, i32, i32, i32),
	"path_filestat_set_times": errnoSig(i32, i32, i32, i32, i64, i64, i32),
	"path_link":               errnoSig(i32, i32, i32, i32, i32, i32, i32),
	"path_open":               errnoSig(i32, i32, i32, i32, i32, i64, i64, i32, i32),
	"path_readlink":           errnoSig(i32, i32, i32, i32, i32, i32),
	"path_remove_directory":   errnoSig(i32, i32, i32),
	"path_rename":             errnoSig(i32, i32, i32, i32, i32, i32),
	"path_symlink":            errnoSig(i32, i32, i32, i32, i32),
	"path_unlink_file":        errnoSig(i32, i32, i32),
	"poll_oneoff":             errnoSig(i32, i32, i32, i32),
	"proc_exit":               {params: []api.ValueType{i32}},
	"proc_raise":              errnoSig(i32),
	"random_get":              errnoSig(i32, i32),
	"sched_yield":             errnoSig(),
	"sock_accept":             errnoSig(i32, i32, i32),
	"sock_recv":               errnoSig(i32, i32, i32, i32, i32, i32),
	"sock_send":               errnoSig(i32, i32, i32, i32, i32),
	"sock_shutdown":           errnoSig(i32, i32),
}
