package log

// MultiLogger fans one event out to several Loggers — the coordinator
// wires its FileLogger (CBOR-on-disk) behind one of these when a protocol
// log file is configured, so transport/dispatch code only ever holds a
// single Logger. It does not add a SlogAdapter.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a MultiLogger that forwards to every given logger.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
