// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The bridge runtime and the built-in engine both log through this package;
// hosts inject their own Logger through the bridge options when they want
// the output routed elsewhere.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("render thread launched", zap.Int("fps", 60))
package logging
