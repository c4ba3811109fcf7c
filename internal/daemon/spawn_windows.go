//go:build windows

package daemon

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
