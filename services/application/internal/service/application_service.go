package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/services/application/internal/lifecycle"
	"github.com/AfshinJalili/bankflow/services/application/internal/storage"
	"github.com/AfshinJalili/bankflow/services/application/internal/validation"
)

type ApplicationStore interface {
	Create(ctx context.Context, app storage.Application) (storage.Application, error)
	Get(ctx context.Context, id int64) (storage.Application, error)
	List(ctx context.Context) ([]storage.Application, error)
	ListByStatus(ctx context.Context, status lifecycle.Status) ([]storage.Application, error)
	Update(ctx context.Context, id int64, fn storage.Mutation) (storage.Application, error)
}

type ApplicationService struct {
	store   ApplicationStore
	logger  *slog.Logger
	metrics *Metrics
}

func NewApplicationService(store ApplicationStore, logger *slog.Logger, metrics *Metrics) *ApplicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationService{store: store, logger: logger, metrics: metrics}
}

// Create validates the applicant and records a PENDING application with
// PENDING KYC.
func (s *ApplicationService) Create(ctx context.Context, in validation.Applicant) (storage.Application, error) {
	if errs := validation.ValidateApplicant(in); len(errs) > 0 {
		s.metrics.created("invalid")
		return storage.Application{}, errs
	}
	identity, _ := banking.ParseIdentityType(in.IdentityType)
	accountType, _ := banking.ParseAccountType(in.AccountType)
	currency, _ := banking.ParseCurrencyType(in.CurrencyType)

	app, err := s.store.Create(ctx, storage.Application{
		FirstName:    strings.TrimSpace(in.FirstName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Email:        strings.TrimSpace(in.Email),
		Region:       strings.TrimSpace(in.Region),
		Province:     strings.TrimSpace(in.Province),
		Municipality: strings.TrimSpace(in.Municipality),
		Street:       strings.TrimSpace(in.Street),
		IdentityType: identity,
		IDRefNumber:  strings.TrimSpace(in.IDRefNumber),
		AccountType:  accountType,
		CurrencyType: currency,
		KYCStatus:    banking.KYCPending,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			s.metrics.created("duplicate")
		} else {
			s.metrics.created("error")
		}
		return storage.Application{}, err
	}
	s.metrics.created("created")
	s.logger.Info("application created", "application_id", app.ID)
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, id int64) (storage.Application, error) {
	return s.store.Get(ctx, id)
}

func (s *ApplicationService) List(ctx context.Context) ([]storage.Application, error) {
	return s.store.List(ctx)
}

func (s *ApplicationService) ListByStatus(ctx context.Context, status lifecycle.Status) ([]storage.Application, error) {
	return s.store.ListByStatus(ctx, status)
}

func (s *ApplicationService) Submit(ctx context.Context, id int64) (storage.Application, error) {
	return s.transition(ctx, id, lifecycle.ActionSubmit, "")
}

func (s *ApplicationService) StartReview(ctx context.Context, id int64, staffID string) (storage.Application, error) {
	return s.transition(ctx, id, lifecycle.ActionReview, staffID)
}

func (s *ApplicationService) Reject(ctx context.Context, id int64, staffID string) (storage.Application, error) {
	return s.transition(ctx, id, lifecycle.ActionReject, staffID)
}

func (s *ApplicationService) Cancel(ctx context.Context, id int64) (storage.Application, error) {
	return s.transition(ctx, id, lifecycle.ActionCancel, "")
}

// Approve moves the application to APPROVED and enqueues ApplicationApproved
// in the same transaction. The event id is derived from the application id,
// so a replayed approval carries the same eventId.
func (s *ApplicationService) Approve(ctx context.Context, id int64, staffID string) (storage.Application, error) {
	return s.transition(ctx, id, lifecycle.ActionApprove, staffID)
}

func (s *ApplicationService) SetKYC(ctx context.Context, id int64, kyc banking.KYCStatus) (storage.Application, error) {
	app, err := s.store.Update(ctx, id, func(app *storage.Application) ([]outbox.Message, error) {
		if err := lifecycle.CheckKYCUpdate(app.Status); err != nil {
			return nil, err
		}
		app.KYCStatus = kyc
		return nil, nil
	})
	if err != nil {
		s.metrics.transition("kyc", "rejected")
		return storage.Application{}, err
	}
	s.metrics.transition("kyc", "ok")
	s.logger.Info("application kyc updated", "application_id", id, "kyc_status", kyc)
	return app, nil
}

func (s *ApplicationService) transition(ctx context.Context, id int64, action lifecycle.Action, staffID string) (storage.Application, error) {
	app, err := s.store.Update(ctx, id, func(app *storage.Application) ([]outbox.Message, error) {
		next, err := lifecycle.Next(app.Status, app.KYCStatus, action)
		if err != nil {
			return nil, err
		}
		app.Status = next
		if staffID != "" {
			app.ReviewedBy = &staffID
		}
		if next != lifecycle.StatusApproved {
			return nil, nil
		}
		evt := approvedEvent(*app)
		return []outbox.Message{{Topic: events.TopicApplicationApproved, Key: evt.Key(), Payload: evt}}, nil
	})
	if err != nil {
		s.metrics.transition(string(action), "rejected")
		return storage.Application{}, err
	}
	s.metrics.transition(string(action), "ok")
	s.logger.Info("application transitioned", "application_id", id, "action", action, "status", app.Status)
	return app, nil
}

func approvedEvent(app storage.Application) events.ApplicationApproved {
	idStr := strconv.FormatInt(app.ID, 10)
	env := kafka.NewEnvelopeWithID(kafka.DeterministicEventID(events.TopicApplicationApproved, idStr), events.SourceAccountOpening)
	return events.ApplicationApproved{
		ApplicationID: app.ID,
		Name: events.Name{
			FirstName:  app.FirstName,
			MiddleName: app.MiddleName,
			LastName:   app.LastName,
		},
		Contact: events.Contact{
			PhoneNumber: app.PhoneNumber,
			Email:       app.Email,
		},
		Address: events.Address{
			Region:       app.Region,
			Province:     app.Province,
			Municipality: app.Municipality,
			Street:       app.Street,
		},
		IdentityType:    string(app.IdentityType),
		IDRefNumber:     app.IDRefNumber,
		AccountType:     string(app.AccountType),
		CurrencyType:    string(app.CurrencyType),
		KYCStatus:       string(app.KYCStatus),
		ApplicationDate: app.ApplicationDate,
		Envelope:        env,
	}
}
