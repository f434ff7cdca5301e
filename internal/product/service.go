package product

import (
	"errors"
	"log/slog"

	productDatamodel "github.com/frahmantamala/kit-checkout/internal/core/datamodel/product"
)

var ErrKitNotFound = errors.New("kit not found")

type RepositoryAPI interface {
	GetAll() ([]*productDatamodel.Kit, error)
	GetByID(id string) (*productDatamodel.Kit, error)
	GetByReference(ref string) (*productDatamodel.Kit, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetActiveKits() ([]KitResponse, error) {
	dataKits, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to get kits from repository", "error", err)
		return nil, err
	}

	responses := make([]KitResponse, 0, len(dataKits))
	for _, dataKit := range dataKits {
		kit := FromDataModel(dataKit)
		if kit.IsActive {
			responses = append(responses, kit.ToResponse())
		}
	}

	s.logger.Debug("retrieved kits", "count", len(responses))
	return responses, nil
}

func (s *Service) ByID(id string) (*Kit, error) {
	dataKit, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if dataKit == nil || !dataKit.IsActive {
		return nil, ErrKitNotFound
	}
	return FromDataModel(dataKit), nil
}

// ByReference resolves the kit a provider external_reference was issued for.
func (s *Service) ByReference(ref string) (*Kit, error) {
	dataKit, err := s.repo.GetByReference(ref)
	if err != nil {
		return nil, err
	}
	if dataKit == nil {
		return nil, ErrKitNotFound
	}
	return FromDataModel(dataKit), nil
}

// Default is the kit sold on the main checkout page.
func (s *Service) Default() (*Kit, error) {
	if kit, err := s.ByID(KitEssencialID); err == nil {
		return kit, nil
	}

	dataKits, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	for _, dataKit := range dataKits {
		if dataKit.IsActive && !dataKit.Premium {
			return FromDataModel(dataKit), nil
		}
	}
	return nil, ErrKitNotFound
}

// Premium is the kit sold on the premium checkout page.
func (s *Service) Premium() (*Kit, error) {
	if kit, err := s.ByID(KitLiderID); err == nil {
		return kit, nil
	}

	dataKits, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	for _, dataKit := range dataKits {
		if dataKit.IsActive && dataKit.Premium {
			return FromDataModel(dataKit), nil
		}
	}
	return nil, ErrKitNotFound
}
