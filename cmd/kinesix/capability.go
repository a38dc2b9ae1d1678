package main

import (
	"fmt"
	"os"

	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/syndtr/gocapability/capability"
)

// canOpenDevices tells whether the process may open event nodes it does not own.
// Device queries open the nodes read-write, CAP_DAC_READ_SEARCH alone is not enough.
func canOpenDevices(caps capability.Capabilities) bool {
	return caps.Get(capability.EFFECTIVE, capability.CAP_DAC_OVERRIDE)
}

// warnAboutPermissions logs a hint when neither root nor the capabilities are present.
// Membership in the input group is enough as well, so this is not fatal.
func warnAboutPermissions() {
	if os.Geteuid() == 0 {
		return
	}

	caps, err := capability.NewPid2(0)
	if err != nil {
		log.Info(fmt.Sprintf("cannot get process capabilities: %v", err), logger.Debug)
		return
	}
	err = caps.Load()
	if err != nil {
		log.Info(fmt.Sprintf("cannot load process capabilities: %v", err), logger.Debug)
		return
	}

	if !canOpenDevices(caps) {
		log.Info("running without root or CAP_DAC_OVERRIDE, event devices need read-write access for the input group members", logger.Warning)
	}
}
