//go:build !windows

package osutil

import (
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

func (s System) Interrupt(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.SendSignal(syscall.SIGINT); err != nil && s.PidAlive(pid) {
		return err
	}
	return nil
}
