package commands

import (
	"context"
	"errors"
	"fmt"
)

var (
	errPinRejected      = errors.New("pin rejected: use at least 4 digits")
	errPinMismatch      = errors.New("pin does not match")
	errPinClear         = errors.New("pin could not be removed")
	errBiometryDeclined = errors.New("biometry could not be enabled on this device")
	errUnlockFailed     = errors.New("biometric unlock failed")
)

type PinCmd struct {
	Set    PinSetCmd    `cmd:"" help:"Set the fallback PIN"`
	Verify PinVerifyCmd `cmd:"" help:"Unlock with the fallback PIN"`
	Clear  PinClearCmd  `cmd:"" help:"Remove the fallback PIN"`
}

type PinSetCmd struct {
	Pin string `arg:"" help:"Numeric PIN, at least 4 digits"`
}

func (p *PinSetCmd) Run(ctx context.Context, globals *Globals) error {
	if !globals.Manager.SetPin(ctx, p.Pin) {
		return errPinRejected
	}
	fmt.Fprintln(globals.Out, "PIN saved")
	return nil
}

type PinVerifyCmd struct {
	Pin string `arg:"" help:"Numeric PIN"`
}

func (p *PinVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	if !globals.Manager.VerifyPin(ctx, p.Pin) {
		return errPinMismatch
	}
	if user := globals.Manager.User(); user != nil {
		fmt.Fprintf(globals.Out, "Unlocked as %s\n", user.DisplayName())
		return nil
	}
	fmt.Fprintln(globals.Out, "PIN accepted")
	return nil
}

type PinClearCmd struct{}

func (p *PinClearCmd) Run(ctx context.Context, globals *Globals) error {
	if !globals.Manager.ClearPin(ctx) {
		return errPinClear
	}
	fmt.Fprintln(globals.Out, "PIN removed")
	return nil
}

type BiometryCmd struct {
	Enable  BiometryEnableCmd  `cmd:"" help:"Enable biometric unlock"`
	Disable BiometryDisableCmd `cmd:"" help:"Disable biometric unlock"`
	Unlock  BiometryUnlockCmd  `cmd:"" help:"Restore the session with biometrics"`
}

type BiometryEnableCmd struct{}

func (b *BiometryEnableCmd) Run(ctx context.Context, globals *Globals) error {
	if !globals.Manager.EnableBiometry(ctx, true) {
		return errBiometryDeclined
	}
	fmt.Fprintln(globals.Out, "Biometric unlock enabled")
	return nil
}

type BiometryDisableCmd struct{}

func (b *BiometryDisableCmd) Run(ctx context.Context, globals *Globals) error {
	globals.Manager.EnableBiometry(ctx, false)
	fmt.Fprintln(globals.Out, "Biometric unlock disabled")
	return nil
}

type BiometryUnlockCmd struct{}

func (b *BiometryUnlockCmd) Run(ctx context.Context, globals *Globals) error {
	if !globals.Manager.TryBiometricUnlock(ctx) {
		return errUnlockFailed
	}
	fmt.Fprintf(globals.Out, "Unlocked as %s\n", globals.Manager.User().DisplayName())
	return nil
}
