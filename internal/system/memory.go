// Package system probes host resources before the pipeline starts
package system

import (
	"github.com/shirou/gopsutil/v4/mem"

	"nexusprover/internal/platform/logger"
)

// memoryFloorBytes is the available-RAM level below which proving larger
// difficulties tends to OOM the subprocess
const memoryFloorBytes = 4 << 30

// CheckMemory logs the host memory picture and warns when available RAM is
// below the floor. It never fails startup; the subprocess isolation keeps an
// OOM from taking the worker down
func CheckMemory() {
	log := logger.Named("system")
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("memory probe failed")
		return
	}
	evt := log.Info()
	if vm.Available < memoryFloorBytes {
		evt = log.Warn()
	}
	evt.
		Uint64("total_bytes", vm.Total).
		Uint64("available_bytes", vm.Available).
		Float64("used_percent", vm.UsedPercent).
		Msg("host memory")
	if vm.Available < memoryFloorBytes {
		log.Warn().Msg("available memory is low; large-difficulty proofs may fail")
	}
}
