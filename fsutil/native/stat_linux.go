//go:build linux

package native

import "syscall"

func atime(st *syscall.Stat_t) int64 { return st.Atim.Sec }
func ctime(st *syscall.Stat_t) int64 { return st.Ctim.Sec }
