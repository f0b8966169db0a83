package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/stwalsh4118/tokkosync/internal/credential"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/tokko"
)

// leadTag marks web contacts created through this service.
const leadTag = "tokkosync"

// LeadRequest is an inquiry about one property.
type LeadRequest struct {
	Name       string
	Email      string
	Phone      string
	Message    string
	PropertyID int64
}

// LeadService forwards inquiries to the provider account owning the
// property.
type LeadService interface {
	// CreateLead forwards req as a web contact. Returns ErrPropertyNotFound
	// for unknown properties and ErrNoCredential when the owning user has
	// no stored credential.
	CreateLead(ctx context.Context, req LeadRequest) error
}

type leadService struct {
	listings repository.ListingRepository
	users    repository.UserRepository
	feeds    FeedFactory
	sealer   *credential.Sealer
	log      *logger.Logger
}

// NewLeadService creates a new instance of LeadService.
func NewLeadService(
	listings repository.ListingRepository,
	users repository.UserRepository,
	feeds FeedFactory,
	sealer *credential.Sealer,
	log *logger.Logger,
) LeadService {
	return &leadService{
		listings: listings,
		users:    users,
		feeds:    feeds,
		sealer:   sealer,
		log:      log.WithComponent("leads"),
	}
}

func (s *leadService) CreateLead(ctx context.Context, req LeadRequest) error {
	property, err := s.listings.FindPropertyByID(ctx, req.PropertyID)
	if err != nil {
		return fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return fmt.Errorf("%w: %d", ErrPropertyNotFound, req.PropertyID)
	}

	owner, err := s.users.FindByID(ctx, property.UserID)
	if err != nil {
		return fmt.Errorf("failed to load property owner: %w", err)
	}
	if owner == nil || owner.TokkoAPIKeyEncrypted == nil {
		return ErrNoCredential
	}

	key, err := s.sealer.Open(*owner.TokkoAPIKeyEncrypted)
	if err != nil {
		return fmt.Errorf("failed to open credential: %w", err)
	}

	contact := tokko.WebContact{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Text:       strings.TrimSpace(req.Message),
		Properties: []int64{property.TokkoID},
		Tags:       []string{leadTag},
	}
	if err := s.feeds.WithKey(key).CreateWebContact(ctx, contact); err != nil {
		s.log.Error("Failed to forward lead", err, map[string]interface{}{
			"property_id": property.ID,
			"tokko_id":    property.TokkoID,
		})
		return fmt.Errorf("failed to forward lead: %w", err)
	}

	s.log.Info("Lead forwarded", map[string]interface{}{
		"property_id": property.ID,
		"tokko_id":    property.TokkoID,
	})
	return nil
}
