package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Iron-Ham/image2video/internal/errors"
	"github.com/Iron-Ham/image2video/internal/logging"
)

func record(calls *[]string, name string) StepFunc {
	return func(_ context.Context, pc *Context) (*Context, error) {
		*calls = append(*calls, name)
		pc.Set(name, true)
		return pc, nil
	}
}

func failWith(calls *[]string, name string, err error) StepFunc {
	return func(_ context.Context, _ *Context) (*Context, error) {
		*calls = append(*calls, name)
		return nil, err
	}
}

// flagHandler mirrors the production handlers: record the error and set a flag.
func flagHandler(flag string) ErrorHandler {
	return func(_ context.Context, err error, pc *Context) (*Context, error) {
		pc.AddError(err)
		pc.SetMeta(flag, true)
		pc.SetMeta(MetaErrorMessage, errors.UserMessage(err))
		return pc, nil
	}
}

func fixedRunID() Option {
	return WithRunIDGenerator(func() string { return "run-1" })
}

func TestRun_StepsInOrder(t *testing.T) {
	var calls []string
	p := New("ordered", fixedRunID()).
		AddStep("a", record(&calls, "a")).
		AddStep("b", record(&calls, "b")).
		AddStep("c", record(&calls, "c"))

	pc := p.Run(context.Background(), map[string]any{"seed": 1})

	if !reflect.DeepEqual(calls, []string{"a", "b", "c"}) {
		t.Errorf("calls = %v, want [a b c]", calls)
	}
	if pc.Failed() {
		t.Errorf("Failed() = true, errors = %v", pc.Errors)
	}
	if pc.Data["seed"] != 1 || pc.Data["c"] != true {
		t.Errorf("Data = %v", pc.Data)
	}
	if pc.MetaString(MetaPipelineName) != "ordered" {
		t.Errorf("pipeline_name = %q, want %q", pc.MetaString(MetaPipelineName), "ordered")
	}
	if pc.MetaString(MetaRunID) != "run-1" {
		t.Errorf("run_id = %q, want %q", pc.MetaString(MetaRunID), "run-1")
	}
}

func TestRun_DoesNotMutateInitialData(t *testing.T) {
	initial := map[string]any{"image_data": "abc"}
	New("copy").
		AddStep("write", func(_ context.Context, pc *Context) (*Context, error) {
			pc.Set("image_url", "https://i.example/x.png")
			return pc, nil
		}).
		Run(context.Background(), initial)

	if _, ok := initial["image_url"]; ok {
		t.Error("Run should seed a copy of the initial data")
	}
}

func TestRun_NilInitialData(t *testing.T) {
	pc := New("empty").Run(context.Background(), nil)
	if pc.Data == nil || len(pc.Data) != 0 {
		t.Errorf("Data = %v, want empty map", pc.Data)
	}
}

func TestRun_HandledErrorShortCircuits(t *testing.T) {
	var calls []string
	missing := errors.NewValidationError("No image data provided")

	p := New("image_upload").
		AddStep("validate", failWith(&calls, "validate", missing)).
		AddStep("upload", record(&calls, "upload")).
		AddErrorHandler(errors.KindValidation, flagHandler(MetaValidationFailed))

	pc := p.Run(context.Background(), nil)

	if !reflect.DeepEqual(calls, []string{"validate"}) {
		t.Errorf("calls = %v, want only validate", calls)
	}
	if len(pc.Errors) != 1 || pc.Errors[0] != error(missing) {
		t.Fatalf("Errors = %v, want exactly the validation error", pc.Errors)
	}
	if !pc.MetaBool(MetaValidationFailed) {
		t.Error("validation_failed flag not set")
	}
	if got := pc.MetaString(MetaErrorMessage); got != "No image data provided" {
		t.Errorf("error_message = %q", got)
	}
}

func TestRun_DefaultHandlerFallback(t *testing.T) {
	var calls []string
	p := New("video_generation").
		AddStep("generate", failWith(&calls, "generate", errors.NewAppError("Failed to submit video task", nil))).
		AddErrorHandler(errors.KindValidation, flagHandler(MetaValidationFailed)).
		SetDefaultErrorHandler(flagHandler(MetaGenerationFailed))

	pc := p.Run(context.Background(), nil)

	if !pc.MetaBool(MetaGenerationFailed) {
		t.Error("default handler should have set generation_failed")
	}
	if pc.MetaBool(MetaValidationFailed) {
		t.Error("validation handler should not run for an app error")
	}
}

func TestRun_ExactKindBeatsDefault(t *testing.T) {
	p := New("p").
		AddStep("s", func(context.Context, *Context) (*Context, error) {
			return nil, errors.NewValidationError("Empty prompt")
		}).
		AddErrorHandler(errors.KindValidation, flagHandler(MetaValidationFailed)).
		SetDefaultErrorHandler(flagHandler(MetaGenerationFailed))

	pc := p.Run(context.Background(), nil)

	if !pc.MetaBool(MetaValidationFailed) || pc.MetaBool(MetaGenerationFailed) {
		t.Errorf("Metadata = %v, want only validation_failed", pc.Metadata)
	}
}

func TestRun_UnhandledError(t *testing.T) {
	var calls []string
	boom := stderrors.New("boom")
	p := New("p").
		AddStep("a", failWith(&calls, "a", boom)).
		AddStep("b", record(&calls, "b"))

	pc := p.Run(context.Background(), nil)

	if len(calls) != 1 {
		t.Errorf("calls = %v, want only a", calls)
	}
	if len(pc.Errors) != 1 || !stderrors.Is(pc.Errors[0], boom) {
		t.Errorf("Errors = %v, want [boom]", pc.Errors)
	}
}

func TestRun_UnhandledErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	p := New("image_upload", WithLogger(logging.NewWriterLogger(&buf, logging.LevelInfo)), fixedRunID()).
		AddStep("a", failWith(new([]string), "a", stderrors.New("boom")))

	p.Run(context.Background(), nil)

	out := buf.String()
	for _, want := range []string{
		`"msg":"unhandled step error"`,
		`"component":"pipeline"`,
		`"pipeline":"image_upload"`,
		`"run_id":"run-1"`,
		`"step":"a"`,
		`"severity":"error"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestRun_HandlerFailureIsRecorded(t *testing.T) {
	handlerErr := stderrors.New("handler broke")
	p := New("p").
		AddStep("a", func(_ context.Context, pc *Context) (*Context, error) {
			pc.Set("a", "done")
			return nil, errors.NewValidationError("x")
		}).
		AddErrorHandler(errors.KindValidation, func(context.Context, error, *Context) (*Context, error) {
			return nil, handlerErr
		})

	pc := p.Run(context.Background(), nil)

	if len(pc.Errors) != 1 {
		t.Fatalf("Errors = %v, want one secondary error", pc.Errors)
	}
	if !stderrors.Is(pc.Errors[0], handlerErr) {
		t.Errorf("Errors[0] = %v, want wrapped handler error", pc.Errors[0])
	}
	if pc.Data["a"] != "done" {
		t.Error("context should be kept as-is when the handler fails")
	}
}

func TestRun_HandlerPanicIsRecorded(t *testing.T) {
	p := New("p").
		AddStep("a", func(context.Context, *Context) (*Context, error) {
			return nil, errors.NewValidationError("x")
		}).
		AddErrorHandler(errors.KindValidation, func(context.Context, error, *Context) (*Context, error) {
			panic("nil map")
		})

	pc := p.Run(context.Background(), nil)

	if len(pc.Errors) != 1 || errors.KindOf(pc.Errors[0]) != errors.KindInternal {
		t.Errorf("Errors = %v, want one internal error", pc.Errors)
	}
}

func TestRun_SuppressingHandlerContinues(t *testing.T) {
	var calls []string
	p := New("p").
		AddStep("a", failWith(&calls, "a", errors.NewValidationError("optional"))).
		AddStep("b", record(&calls, "b")).
		AddErrorHandler(errors.KindValidation, func(_ context.Context, _ error, pc *Context) (*Context, error) {
			pc.SetMeta("suppressed", true)
			return pc, nil
		})

	pc := p.Run(context.Background(), nil)

	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Errorf("calls = %v, want [a b]", calls)
	}
	if pc.Failed() || !pc.MetaBool("suppressed") {
		t.Errorf("unexpected outcome: errors=%v metadata=%v", pc.Errors, pc.Metadata)
	}
}

func TestAddErrorHandler_LaterRegistrationWins(t *testing.T) {
	p := New("p").
		AddStep("a", func(context.Context, *Context) (*Context, error) {
			return nil, errors.NewValidationError("x")
		}).
		AddErrorHandler(errors.KindValidation, flagHandler("first")).
		AddErrorHandler(errors.KindValidation, flagHandler("second"))

	pc := p.Run(context.Background(), nil)

	if pc.MetaBool("first") || !pc.MetaBool("second") {
		t.Errorf("Metadata = %v, want only the second handler", pc.Metadata)
	}
}

func TestRun_StepPanicBecomesInternalError(t *testing.T) {
	var calls []string
	p := New("p").
		AddStep("a", func(context.Context, *Context) (*Context, error) {
			panic("index out of range")
		}).
		AddStep("b", record(&calls, "b"))

	pc := p.Run(context.Background(), nil)

	if len(calls) != 0 {
		t.Error("steps after a panic should not run")
	}
	if len(pc.Errors) != 1 || errors.KindOf(pc.Errors[0]) != errors.KindInternal {
		t.Fatalf("Errors = %v, want one internal error", pc.Errors)
	}
	if !strings.Contains(pc.Errors[0].Error(), "step a panicked") {
		t.Errorf("Error() = %q", pc.Errors[0].Error())
	}
}

func TestRun_CanceledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pc := New("p").AddStep("a", record(&calls, "a")).Run(ctx, nil)

	if len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if !pc.Failed() || !stderrors.Is(pc.Errors[0], context.Canceled) {
		t.Errorf("Errors = %v, want cancellation", pc.Errors)
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := New("image_upload", fixedRunID()).
		AddStep("validate", func(_ context.Context, pc *Context) (*Context, error) {
			v, ok := pc.GetString("image_data")
			if !ok {
				return nil, errors.NewValidationError("No image data provided")
			}
			if v == "" {
				return nil, errors.NewValidationError("Empty image data")
			}
			return pc, nil
		}).
		AddStep("upload", func(_ context.Context, pc *Context) (*Context, error) {
			pc.Set("image_url", "https://i.example/fixed.png")
			return pc, nil
		}).
		AddErrorHandler(errors.KindValidation, flagHandler(MetaValidationFailed))

	for _, input := range []map[string]any{
		{"image_data": "aGVsbG8="},
		{"image_data": ""},
		{},
	} {
		first := p.Run(context.Background(), input)
		second := p.Run(context.Background(), input)

		if !reflect.DeepEqual(first.Data, second.Data) {
			t.Errorf("Data differs across runs: %v vs %v", first.Data, second.Data)
		}
		if !reflect.DeepEqual(first.Metadata, second.Metadata) {
			t.Errorf("Metadata differs across runs: %v vs %v", first.Metadata, second.Metadata)
		}
		if len(first.Errors) != len(second.Errors) {
			t.Errorf("error count differs: %d vs %d", len(first.Errors), len(second.Errors))
		}
	}
}

func TestStepNames(t *testing.T) {
	p := New("p").
		AddStep("validate_prompt", record(new([]string), "x")).
		AddStep("generate_video", record(new([]string), "y"))

	if got := p.StepNames(); !reflect.DeepEqual(got, []string{"validate_prompt", "generate_video"}) {
		t.Errorf("StepNames() = %v", got)
	}
	if p.Name() != "p" {
		t.Errorf("Name() = %q, want p", p.Name())
	}
}

func TestContext_Accessors(t *testing.T) {
	pc := NewContext(map[string]any{"prompt": "", "n": 3})

	if v, ok := pc.GetString("prompt"); !ok || v != "" {
		t.Errorf("GetString(prompt) = (%q, %v), want (\"\", true)", v, ok)
	}
	if _, ok := pc.GetString("missing"); ok {
		t.Error("GetString(missing) should report absent")
	}
	if v, ok := pc.GetString("n"); !ok || v != "" {
		t.Errorf("GetString(non-string) = (%q, %v), want (\"\", true)", v, ok)
	}

	clone := pc.Clone()
	clone.Set("prompt", "wave")
	clone.AddError(stderrors.New("x"))
	if v, _ := pc.GetString("prompt"); v != "" {
		t.Error("Clone should not share Data")
	}
	if pc.Failed() {
		t.Error("Clone should not share Errors")
	}
	if pc.Err() != nil {
		t.Errorf("Err() = %v, want nil", pc.Err())
	}
	if clone.Err() == nil {
		t.Error("clone Err() = nil, want error")
	}
}
