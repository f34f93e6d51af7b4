package parties

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"

	"github.com/waa-mobile/waapos/internal/shared"
)

// DefaultRegion is used to parse phone numbers written without a country code.
const DefaultRegion = "PK"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customer and supplier registration.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	region string
}

// NewService constructs Service. region is the ISO country used for local phone numbers.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger, region string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if region == "" {
		region = DefaultRegion
	}
	return &Service{repo: repo, audit: audit, logger: logger, region: region}
}

// Register creates a party with its opening balance.
func (s *Service) Register(ctx context.Context, kind Kind, req RegisterRequest, actorID int64) (Party, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Party{}, shared.Invalid("name", "party name required")
	}
	phone, err := s.NormalizePhone(req.Phone)
	if err != nil {
		return Party{}, err
	}
	party, err := s.repo.Create(ctx, Party{
		Kind:           kind,
		Name:           name,
		Phone:          phone,
		Email:          strings.TrimSpace(req.Email),
		Address:        strings.TrimSpace(req.Address),
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		return Party{}, err
	}
	s.logger.Info("party registered", slog.String("kind", string(kind)), slog.String("name", party.Name))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "PARTY_REGISTER",
			Entity:   string(kind),
			EntityID: strconv.FormatInt(party.ID, 10),
			Meta:     map[string]any{"name": party.Name, "opening_balance": party.OpeningBalance.String()},
		}); err != nil {
			s.logger.Warn("party audit", slog.Any("error", err))
		}
	}
	return party, nil
}

// Get resolves a party by kind and name. Unknown names are reported, never created.
func (s *Service) Get(ctx context.Context, kind Kind, name string) (Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Party{}, shared.Invalid("name", "party name required")
	}
	return s.repo.GetByName(ctx, kind, name)
}

// List returns a page of parties and the total count.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Party, int, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.List(ctx, req)
}

// UpdateContact changes phone, email or address.
func (s *Service) UpdateContact(ctx context.Context, kind Kind, name string, req UpdateContactRequest) (Party, error) {
	party, err := s.Get(ctx, kind, name)
	if err != nil {
		return Party{}, err
	}
	if req.Phone != nil {
		phone, err := s.NormalizePhone(*req.Phone)
		if err != nil {
			return Party{}, err
		}
		party.Phone = phone
	}
	if req.Email != nil {
		party.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		party.Address = strings.TrimSpace(*req.Address)
	}
	if err := s.repo.UpdateContact(ctx, party.ID, party.Phone, party.Email, party.Address); err != nil {
		return Party{}, err
	}
	return party, nil
}

// NormalizePhone validates a phone number and formats it as E.164. Blank input stays blank.
func (s *Service) NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, s.region)
	if err != nil {
		return "", shared.Invalid("phone", "phone number could not be parsed")
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", shared.Invalid("phone", "phone number is not valid")
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
