package email

import (
	"fmt"
	"io"
	"strings"
	"time"

	"visado/internal/config"
	"visado/internal/models"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// Mailer sends the owner alert and the customer confirmation after a
// payment lands.
type Mailer struct {
	enabled bool
	from    string
	owner   string
	loc     *time.Location
	logger  *zerolog.Logger

	// send is swapped out in tests.
	send func(m *gomail.Message) error
}

func NewMailer(cfg config.EmailConfig, timezone string, logger *zerolog.Logger) (*Mailer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid email timezone %q: %w", timezone, err)
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		enabled: cfg.Enabled,
		from:    cfg.From,
		owner:   cfg.Owner,
		loc:     loc,
		logger:  logger,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}, nil
}

// SendOwnerNotification alerts the consultancy owner about a paid
// booking.
func (m *Mailer) SendOwnerNotification(booking *models.Booking, slot *models.Slot) error {
	if !m.enabled {
		m.logger.Debug().Str("booking_id", booking.ID).Msg("Email disabled, skipping owner notification")
		return nil
	}

	body := fmt.Sprintf(`<h2>Nueva Consulta de Visa</h2>
<p><strong>Cliente:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Teléfono:</strong> %s</p>
<p><strong>Tipo de visa:</strong> %s</p>
<p><strong>Fecha:</strong> %s a las %s</p>
<p><strong>Invitados:</strong> %s</p>
<p><strong>Comentario:</strong> %s</p>
<p><strong>Importe:</strong> %.2f EUR</p>`,
		booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone,
		strings.ToUpper(booking.VisaType), slot.Date, slot.TimeSlot,
		booking.Invitados, booking.Comment, booking.Price)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.owner)
	msg.SetHeader("Subject", fmt.Sprintf("Nueva Consulta de Visa - %s", booking.CustomerName))
	msg.SetBody("text/html", body)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("failed to send owner notification: %w", err)
	}

	m.logger.Info().Str("booking_id", booking.ID).Msg("Owner notification sent")
	return nil
}

// SendCustomerConfirmation mails the customer their appointment
// details, the Meet link when one exists, and an ICS invite.
func (m *Mailer) SendCustomerConfirmation(booking *models.Booking, slot *models.Slot, meetLink string) error {
	if !m.enabled {
		m.logger.Debug().Str("booking_id", booking.ID).Msg("Email disabled, skipping customer confirmation")
		return nil
	}

	meetBlock := ""
	if meetLink != "" {
		meetBlock = fmt.Sprintf(`<p><strong>Enlace de la videollamada:</strong> <a href="%s">%s</a></p>`, meetLink, meetLink)
	}

	body := fmt.Sprintf(`<h2>Tu consulta está confirmada</h2>
<p>Hola %s,</p>
<p>Hemos recibido tu pago y tu consulta de visa (%s) queda confirmada.</p>
<p><strong>Fecha:</strong> %s</p>
<p><strong>Hora:</strong> %s (hora de Madrid)</p>
%s
<p>Si necesitas cambiar la cita, responde a este correo.</p>`,
		booking.CustomerName, strings.ToUpper(booking.VisaType),
		slot.Date, slot.TimeSlot, meetBlock)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", booking.CustomerEmail)
	msg.SetHeader("Subject", "Confirmación de tu Consulta de Visa")
	msg.SetBody("text/html", body)

	ics, err := buildICS(booking, slot, meetLink, m.loc)
	if err != nil {
		m.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("Skipping ICS attachment")
	} else {
		msg.Attach("consulta.ics",
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, werr := w.Write([]byte(ics))
				return werr
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"text/calendar; method=REQUEST"}}),
		)
	}

	if err := m.send(msg); err != nil {
		return fmt.Errorf("failed to send customer confirmation: %w", err)
	}

	m.logger.Info().Str("booking_id", booking.ID).Str("email", booking.CustomerEmail).Msg("Customer confirmation sent")
	return nil
}
