package valve

import (
	"fmt"
	"log"
)

// ValveLogger prefixes every line with the owning datapath's id so
// multiplexed Valves share one log stream without losing which
// datapath a line came from, mirroring valve.py's ValveLogger.
type ValveLogger struct {
	logger *log.Logger
	dpID   uint64
}

// NewValveLogger wraps dst with dpID-prefixed Debug/Info/Warning/Error
// methods. dst is the caller's *log.Logger (stdlib, matching the rest
// of the pack's ambient logging convention; see SPEC_FULL.md §1).
func NewValveLogger(dst *log.Logger, dpID uint64) *ValveLogger {
	return &ValveLogger{logger: dst, dpID: dpID}
}

func (l *ValveLogger) prefix(msg string) string {
	return fmt.Sprintf("DPID %x %s", l.dpID, msg)
}

func (l *ValveLogger) Debug(msg string)   { l.logger.Print(l.prefix("DEBUG " + msg)) }
func (l *ValveLogger) Info(msg string)    { l.logger.Print(l.prefix("INFO " + msg)) }
func (l *ValveLogger) Warning(msg string) { l.logger.Print(l.prefix("WARNING " + msg)) }
func (l *ValveLogger) Error(msg string)   { l.logger.Print(l.prefix("ERROR " + msg)) }
