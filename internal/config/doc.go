// Package config loads confwatch's own settings, as opposed to the
// application configuration it watches.
//
// Settings live in ~/.confwatch/config.yaml:
//
//	watch:
//	  interval: 2s        # poll interval, (0, 1h]
//	  output: console     # console | json
//	socket:
//	  enabled: false      # serve the status API
//	  path: /tmp/confwatch.socket
//
// A missing file yields Default(). Keys omitted from the file keep their
// default values. Command-line flags override whatever is loaded here.
//
// Errors:
//   - ErrInvalidConfig: the settings failed validation
//   - ErrNoConfig: the settings file does not exist (handled by Load)
package config
