package biometric

import "context"

// Modality is a biometric method the device can offer.
type Modality string

const (
	Fingerprint Modality = "fingerprint"
	Face        Modality = "face"
	Iris        Modality = "iris"
)

// Prompt configures the interactive challenge shown to the user.
type Prompt struct {
	Message               string
	CancelLabel           string
	FallbackLabel         string
	DisableDeviceFallback bool
}

// Result is the outcome of an interactive challenge. Error carries the
// platform reason (e.g. "user_cancel") when Success is false.
type Result struct {
	Success bool
	Error   string
}

// Sensor is the device biometric hardware. Authenticate suspends until the
// user answers the prompt or ctx is done.
type Sensor interface {
	HasHardware(ctx context.Context) (bool, error)
	SupportedTypes(ctx context.Context) ([]Modality, error)
	Authenticate(ctx context.Context, prompt Prompt) (Result, error)
}

// Unavailable is a Sensor for hosts without biometric hardware.
type Unavailable struct{}

var _ Sensor = Unavailable{}

func (Unavailable) HasHardware(context.Context) (bool, error) {
	return false, nil
}

func (Unavailable) SupportedTypes(context.Context) ([]Modality, error) {
	return nil, nil
}

func (Unavailable) Authenticate(context.Context, Prompt) (Result, error) {
	return Result{Success: false, Error: "not_available"}, nil
}
