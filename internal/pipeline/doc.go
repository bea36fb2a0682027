// Package pipeline runs an ordered list of steps over a single [Context],
// routing step failures to error handlers keyed by [errors.Kind].
//
// # Execution
//
// [Pipeline.Run] seeds a fresh Context, then calls each step in
// registration order. A step returns the (possibly mutated) context or a
// typed error. On error the pipeline looks up the handler registered for the
// error's exact kind, falling back to the default handler, and lets it
// rewrite the context. After handling, a non-empty Context.Errors stops the
// run. A handler that records nothing lets the run continue.
//
// # Usage
//
//	p := pipeline.New("image_upload", pipeline.WithLogger(logger)).
//	    AddStep("validate_image_data", validateImageData).
//	    AddStep("upload_image", uploadImage).
//	    AddErrorHandler(errors.KindValidation, handleValidation).
//	    SetDefaultErrorHandler(handleUpload)
//
//	pc := p.Run(ctx, map[string]any{"image_data": b64})
//	if pc.Failed() {
//	    reply(pc.MetaString(pipeline.MetaErrorMessage))
//	}
package pipeline
