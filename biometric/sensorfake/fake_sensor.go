package sensorfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-session/biometric"
)

var _ biometric.Sensor = (*FakeSensor)(nil)

// FakeSensor is a scripted biometric.Sensor. Authenticate answers with
// the queued results in order, then with the default result.
type FakeSensor struct {
	hardware   bool
	modalities []biometric.Modality
	queue      []biometric.Result
	fallback   biometric.Result
	prompts    []biometric.Prompt
	err        error
	lock       sync.Mutex
}

func NewFakeSensor(hardware bool, modalities ...biometric.Modality) *FakeSensor {
	return &FakeSensor{
		hardware:   hardware,
		modalities: modalities,
		fallback:   biometric.Result{Success: true},
	}
}

// Succeed makes every unqueued challenge pass (true) or fail (false).
func (s *FakeSensor) Succeed(ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if ok {
		s.fallback = biometric.Result{Success: true}
		return
	}
	s.fallback = biometric.Result{Success: false, Error: "authentication_failed"}
}

// Queue adds one-shot results consumed before the default.
func (s *FakeSensor) Queue(results ...biometric.Result) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.queue = append(s.queue, results...)
}

// FailWith makes every sensor call return err.
func (s *FakeSensor) FailWith(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.err = err
}

// Prompts returns every prompt shown so far.
func (s *FakeSensor) Prompts() []biometric.Prompt {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]biometric.Prompt(nil), s.prompts...)
}

func (s *FakeSensor) HasHardware(context.Context) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.hardware, s.err
}

func (s *FakeSensor) SupportedTypes(context.Context) ([]biometric.Modality, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]biometric.Modality(nil), s.modalities...), nil
}

func (s *FakeSensor) Authenticate(ctx context.Context, prompt biometric.Prompt) (biometric.Result, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return biometric.Result{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return biometric.Result{}, err
	}
	if len(s.queue) > 0 {
		r := s.queue[0]
		s.queue = s.queue[1:]
		return r, nil
	}
	return s.fallback, nil
}
