// Package logging provides the structured logger shared by the library
// packages and the devolo-plc command.
//
// Library code never writes to the terminal on its own. Every component asks
// for a named child of the global logger, which is a no-op until the
// application calls Initialize:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Components log with structured fields:
//
//	log := logging.Named("discovery")
//	log.Debug("Adding service info", zap.String("service_type", st), zap.String("ip", ip))
//
// The level can also come from the DEVOLO_PLC_LOG_LEVEL environment variable.
// Output goes to stderr in console format so that command output on stdout
// stays machine readable.
package logging
