package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// Every send is bounded; a dead relay must not hold a request open.
const sendTimeout = 10 * time.Second

// Mailer renders the product emails and hands them to the sender. Callers
// decide whether a failure matters: registration and trip cancellation log
// and continue, password reset quietly swallows to avoid user enumeration.
type Mailer struct {
	sender  Sender
	timeout time.Duration
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender, timeout: sendTimeout}
}

type emailData struct {
	RecipientName string
	Body          string
	Token         string
	Data          map[string]interface{}
}

func (m *Mailer) render(name, text string, data emailData) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.sender.Send(sendCtx, to, subject, body)
}

// SendWelcomeEmail greets a new account after registration.
func (m *Mailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	body, err := m.render("welcome", welcomeTemplate, emailData{
		RecipientName: name,
		Body:          "Tu cuenta está lista. Publica un viaje o reserva tu puesto en el próximo que salga del campus.",
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "¡Bienvenido a SabanaGo!", body)
}

// SendPasswordResetEmail carries the raw reset token. The token is only ever
// stored hashed, so this mail is the single place it exists in clear.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	body, err := m.render("password_reset", passwordResetTemplate, emailData{
		RecipientName: name,
		Token:         token,
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Restablece tu contraseña", body)
}

// SendTripCancelledEmail notifies a passenger that the driver cancelled.
func (m *Mailer) SendTripCancelledEmail(ctx context.Context, to, name string, tripDetails map[string]interface{}) error {
	body, err := m.render("trip_cancelled", tripCancelledTemplate, emailData{
		RecipientName: name,
		Data:          tripDetails,
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Tu viaje fue cancelado", body)
}

const (
	welcomeTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #003087; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>¡Bienvenido a SabanaGo!</h1>
        </div>
        <div class="content">
            <p>Hola {{.RecipientName}},</p>
            <p>{{.Body}}</p>
        </div>
        <div class="footer">
            <p>SabanaGo · Universidad de La Sabana</p>
        </div>
    </div>
</body>
</html>
`

	passwordResetTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #003087; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .token { background-color: white; padding: 15px; margin: 15px 0; border-radius: 5px; font-family: monospace; font-size: 16px; text-align: center; word-break: break-all; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Restablece tu contraseña</h1>
        </div>
        <div class="content">
            <p>Hola {{.RecipientName}},</p>
            <p>Recibimos una solicitud para restablecer tu contraseña. Usa este código en la aplicación:</p>
            <div class="token">{{.Token}}</div>
            <p>El código vence en 15 minutos. Si no fuiste tú, ignora este correo.</p>
        </div>
        <div class="footer">
            <p>SabanaGo · Universidad de La Sabana</p>
        </div>
    </div>
</body>
</html>
`

	tripCancelledTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #C8102E; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .trip-details { background-color: white; padding: 15px; margin: 15px 0; border-radius: 5px; }
        .detail-row { display: flex; justify-content: space-between; padding: 5px 0; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Viaje cancelado</h1>
        </div>
        <div class="content">
            <p>Hola {{.RecipientName}},</p>
            <p>El conductor canceló el viaje en el que tenías una reserva. No se realizó ningún cobro.</p>
            <div class="trip-details">
                {{range $key, $value := .Data}}
                <div class="detail-row">
                    <strong>{{$key}}:</strong>
                    <span>{{$value}}</span>
                </div>
                {{end}}
            </div>
            <p>Busca otro viaje disponible en la aplicación.</p>
        </div>
        <div class="footer">
            <p>SabanaGo · Universidad de La Sabana</p>
        </div>
    </div>
</body>
</html>
`
)
