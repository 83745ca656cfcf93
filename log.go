package rgbwallet

import (
	"sort"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/rgbwallet/bpwallet"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/rgbcfg"
	"github.com/lightninglabs/rgbwallet/rgbdb"
	"github.com/lightninglabs/rgbwallet/rgbfreighter"
	"github.com/lightninglabs/rgbwallet/rgbpsbt"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "RGBW"

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = btclog.Disabled

// subLoggers maps every subsystem to the function replacing its package
// logger.
var subLoggers = map[string]func(btclog.Logger){
	Subsystem:              UseLogger,
	bpwallet.Subsystem:     bpwallet.UseLogger,
	inventory.Subsystem:    inventory.UseLogger,
	rgbdb.Subsystem:        rgbdb.UseLogger,
	rgbfreighter.Subsystem: rgbfreighter.UseLogger,
	rgbpsbt.Subsystem:      rgbpsbt.UseLogger,
}

// SupportedSubsystems returns the sorted codes of all subsystems that can be
// logged.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subLoggers))
	for subsystem := range subLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetupLoggers creates a logger for every subsystem on top of the given
// handler and sets its level.
func SetupLoggers(handler btclog.Handler, levels *rgbcfg.LogLevels) {
	root := btclog.NewSLogger(handler)
	for subsystem, useLogger := range subLoggers {
		logger := root.SubSystem(subsystem)
		logger.SetLevel(levels.Level(subsystem))
		useLogger(logger)
	}
}

// DisableLog disables all library log output.  Logging output is disabled
// by default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
// This should be used in preference to SetLogWriter if the caller is also
// using btclog.
func UseLogger(logger btclog.Logger) {
	log = logger
}
