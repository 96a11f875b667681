//go:build linux

package osutil

import "golang.org/x/sys/unix"

func (System) SetAffinity(pid int32, cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		if cpu >= 0 {
			set.Set(cpu)
		}
	}
	return unix.SchedSetaffinity(int(pid), &set)
}
