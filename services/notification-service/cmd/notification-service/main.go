package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/juanfcarrillo/pet-vet/libs/config"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/libs/httpx"
	"github.com/juanfcarrillo/pet-vet/libs/kafkax"
	otelx "github.com/juanfcarrillo/pet-vet/libs/otel"
	"github.com/juanfcarrillo/pet-vet/libs/runtime"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/consumer"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/email"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/inbox"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/outbox"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/sms"
	"github.com/juanfcarrillo/pet-vet/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentPayload struct {
	AppointmentID    string `json:"appointment_id"`
	ClientID         string `json:"client_id"`
	VeterinarianID   string `json:"veterinarian_id"`
	ClientName       string `json:"client_name"`
	ClientEmail      string `json:"client_email"`
	ClientPhone      string `json:"client_phone"`
	VeterinarianName string `json:"veterinarian_name"`
	PetName          string `json:"pet_name"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	AppointmentDate  string `json:"appointment_date"`
}

// messageFor builds the client-facing text for an appointment event.
func messageFor(eventType string, p appointmentPayload) (subject string, body string, ok bool) {
	when := p.AppointmentDate
	if ts, err := time.Parse(time.RFC3339, p.AppointmentDate); err == nil {
		when = ts.UTC().Format("Mon, 02 Jan 2006 15:04")
	}

	switch eventType {
	case "appointments.appointment.scheduled.v1":
		subject = "Appointment scheduled"
		body = fmt.Sprintf("Hi %s, your appointment for %s with %s is scheduled for %s.",
			p.ClientName, p.PetName, p.VeterinarianName, when)
	case "appointments.appointment.confirmed.v1":
		subject = "Appointment confirmed"
		body = fmt.Sprintf("Hi %s, your appointment for %s on %s has been confirmed.",
			p.ClientName, p.PetName, when)
	case "appointments.appointment.cancelled.v1":
		subject = "Appointment cancelled"
		body = fmt.Sprintf("Hi %s, your appointment for %s on %s has been cancelled.",
			p.ClientName, p.PetName, when)
	case "reminders.appointment.due.v1":
		subject = "Appointment reminder"
		body = fmt.Sprintf("Hi %s, this is a reminder that your appointment for %s with %s is coming up on %s.",
			p.ClientName, p.PetName, p.VeterinarianName, when)
	default:
		return "", "", false
	}
	return subject, body, true
}

func writeOutboxSent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, p appointmentPayload, channel string, providerID string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if strings.TrimSpace(providerID) == "" {
		providerID = "unknown"
	}
	eventPayload, err := json.Marshal(map[string]any{
		"appointment_id": p.AppointmentID,
		"client_id":      p.ClientID,
		"channel":        channel,
		"provider_id":    providerID,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   p.AppointmentID,
		EventType:     "notification.sent.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func writeOutboxFailed(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, p appointmentPayload, channel string, reason string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventPayload, err := json.Marshal(map[string]any{
		"appointment_id": p.AppointmentID,
		"client_id":      p.ClientID,
		"channel":        channel,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   p.AppointmentID,
		EventType:     "notification.failed.v1",
		Payload:       eventPayload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@petvet.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)
	emailProviderID := "smtp"

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	}

	topics := []string{
		"appointments.appointment.scheduled.v1",
		"appointments.appointment.confirmed.v1",
		"appointments.appointment.cancelled.v1",
		"reminders.appointment.due.v1",
	}
	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  topics,
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload appointmentPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid appointment payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.ClientEmail == "" {
			logger.Error("missing appointment fields", "topic", msg.Topic)
			return nil
		}

		subject, body, ok := messageFor(msg.Topic, payload)
		if !ok {
			logger.Error("unsupported event", "topic", msg.Topic)
			return nil
		}

		templateData := map[string]any{
			"pet_name":          payload.PetName,
			"veterinarian_name": payload.VeterinarianName,
			"appointment_date":  payload.AppointmentDate,
			"type":              payload.Type,
		}

		emailStatus := "sent"
		if err := emailSender.Send(payload.ClientEmail, subject, body); err != nil {
			emailStatus = "failed"
			logger.Error("email send failed", "err", err, "recipient", payload.ClientEmail)
			if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "email", err.Error()); err != nil {
				logger.Error("failed to enqueue notification.failed", "err", err)
				return err
			}
		} else {
			if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "email", emailProviderID); err != nil {
				logger.Error("failed to enqueue notification.sent", "err", err)
				return err
			}
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: payload.AppointmentID,
			ClientID:      payload.ClientID,
			Channel:       "email",
			Recipient:     payload.ClientEmail,
			Payload:       templateData,
			Status:        emailStatus,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		if payload.ClientPhone != "" {
			smsStatus := "sent"
			if err := smsSender.Send(ctx, payload.ClientPhone, body); err != nil {
				smsStatus = "failed"
				logger.Error("sms send failed", "err", err, "recipient", payload.ClientPhone)
				if err := writeOutboxFailed(ctx, pool, outboxRepo, payload, "sms", err.Error()); err != nil {
					logger.Error("failed to enqueue notification.failed", "err", err)
					return err
				}
			} else {
				if err := writeOutboxSent(ctx, pool, outboxRepo, payload, "sms", smsSender.ProviderID()); err != nil {
					logger.Error("failed to enqueue notification.sent", "err", err)
					return err
				}
			}
			if err := notificationsRepo.Insert(ctx, storage.Notification{
				AppointmentID: payload.AppointmentID,
				ClientID:      payload.ClientID,
				Channel:       "sms",
				Recipient:     payload.ClientPhone,
				Payload:       templateData,
				Status:        smsStatus,
			}); err != nil {
				logger.Error("failed to persist notification", "err", err)
				return err
			}
		}

		logger.Info("appointment event processed", "appointment_id", payload.AppointmentID, "topic", msg.Topic, "email_status", emailStatus)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
