// Package log provides the logging abstraction used by every cyup component.
//
// Components never log through a process-wide logger. Each one receives a
// Logger at construction, usually a [Named] child of the root logger:
//
//	root := log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)
//	proc := app.NewProcess(cfg, collector, registry, factory, log.Named(root, "process"))
//
// Use the no-op logger in tests:
//
//	logger := log.NewNoopLogger()
package log
