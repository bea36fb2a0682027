// Package logging provides structured logging for image2video.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent attributes, so a single conversation can be followed from the
// inbound message through both pipelines to the reply.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer. [RotatingWriter]
// serializes writes and rotation with a mutex.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/image2video.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("orchestrator started", "store", "memory")
//
// An empty path logs to stderr.
//
// # Context Propagation
//
//	userLogger := logger.WithComponent("orchestrator").WithUser("u-42")
//	runLogger := userLogger.WithPipeline("image_upload", runID)
//	runLogger.Info("step completed", "step", "upload_image")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"step completed","component":"orchestrator","user_id":"u-42","pipeline":"image_upload","run_id":"...","step":"upload_image"}
//
// Libraries that take a *slog.Logger (the retrying HTTP client, the gin
// middleware) get one carrying the same attributes from [Logger.Slog].
//
// # Log Rotation
//
//	logger, err := logging.NewRotatingLogger(path, "INFO", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	    Compress:   true,
//	})
//
// Rotated files are named image2video.log.1, image2video.log.2, and so on,
// where .1 is the most recent. With compression they end in .gz.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] over a buffer to
// assert on the JSON lines.
package logging
