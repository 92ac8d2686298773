//go:build darwin

package native

import "syscall"

func atime(st *syscall.Stat_t) int64 { return st.Atimespec.Sec }
func ctime(st *syscall.Stat_t) int64 { return st.Ctimespec.Sec }
