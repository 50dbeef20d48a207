package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Supported job types. Each one maps to a submit route on the inference
// engine; the request body is opaque to the dispatch layer beyond the
// envelope check below.
const (
	JobTypeCameraAngle   = "camera-angle"
	JobTypeQwenImageEdit = "qwen-image-edit"
	JobTypeFaceMask      = "face-mask"
	JobTypeFullFaceSwap  = "full-face-swap"
)

// EnginePath returns the engine submit route for a job type.
func EnginePath(jobType string) string {
	return fmt.Sprintf("/api/v1/%s/jobs", jobType)
}

// KnownJobType reports whether jobType has a registered envelope.
func KnownJobType(jobType string) bool {
	_, ok := envelopes[jobType]
	return ok
}

// JobTypes lists the supported job types in route order.
func JobTypes() []string {
	return []string{JobTypeCameraAngle, JobTypeQwenImageEdit, JobTypeFaceMask, JobTypeFullFaceSwap}
}

// Per-type envelopes. Only presence of the required fields is checked; the
// values are passed through to the engine uninterpreted.
type cameraAngleEnvelope struct {
	ImageURL json.RawMessage `json:"image_url" validate:"required"`
}

type qwenImageEditEnvelope struct {
	ImageURL json.RawMessage `json:"image_url" validate:"required"`
	Prompt   json.RawMessage `json:"prompt" validate:"required"`
}

type faceMaskEnvelope struct {
	ImageURL json.RawMessage `json:"image_url" validate:"required"`
}

type fullFaceSwapEnvelope struct {
	SourceImageURL json.RawMessage `json:"source_image_url" validate:"required"`
	TargetFaceURL  json.RawMessage `json:"target_face_url" validate:"required"`
}

var envelopes = map[string]func() any{
	JobTypeCameraAngle:   func() any { return &cameraAngleEnvelope{} },
	JobTypeQwenImageEdit: func() any { return &qwenImageEditEnvelope{} },
	JobTypeFaceMask:      func() any { return &faceMaskEnvelope{} },
	JobTypeFullFaceSwap:  func() any { return &fullFaceSwapEnvelope{} },
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		// Report field names by their json tag so envelope errors speak the
		// wire vocabulary.
		vld.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// ValidateEnvelope performs the two-level envelope check for a submission
// body: the body must decode as a JSON object, and the job type's required
// fields must be present. It never interprets field values.
func ValidateEnvelope(jobType string, body json.RawMessage) error {
	mk, ok := envelopes[jobType]
	if !ok {
		return fmt.Errorf("%w: unknown job type %q", ErrNotFound, jobType)
	}
	env := mk()
	if err := json.Unmarshal(body, env); err != nil {
		return fmt.Errorf("%w: invalid json", ErrInvalidArgument)
	}
	if err := getValidator().Struct(env); err != nil {
		verrs, _ := err.(validator.ValidationErrors)
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidArgument, missing)
	}
	return nil
}
