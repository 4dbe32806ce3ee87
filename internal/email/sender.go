package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para notificar credenciales de cuentas nuevas.
type Sender interface {
	SendAccountCredentials(ctx context.Context, toEmail, name, password string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendAccountCredentials(_ context.Context, _ string, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
