package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danceforge/backoffice/internal/models"
)

// DefaultSellerConcurrency bounds parallel seller lookups
const DefaultSellerConcurrency = 8

// Source fetches raw catalog collections from the marketplace API
type Source interface {
	ListResources(ctx context.Context) ([]*models.Resource, error)
	GetUser(ctx context.Context, id int64) (*models.Seller, error)
}

// View is one rendered catalog state: the requested page plus facets
type View struct {
	Page   *models.CatalogPage `json:"page"`
	Facets *models.FacetCounts `json:"facets"`
}

// Service loads resources and sellers and joins them
type Service struct {
	source      Source
	concurrency int
	logger      *zap.Logger
}

// NewService creates a catalog service. concurrency <= 0 uses the default.
func NewService(source Source, concurrency int, logger *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultSellerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:      source,
		concurrency: concurrency,
		logger:      logger,
	}
}

// PlaceholderSeller stands in for a seller whose profile could not be fetched
func PlaceholderSeller(id int64) *models.Seller {
	return &models.Seller{
		ID:       id,
		Username: fmt.Sprintf("Seller #%d", id),
	}
}

// Load fetches every resource, then each distinct seller once, and joins them.
// A failed seller lookup degrades to PlaceholderSeller; only a failed
// resource listing fails the load.
func (s *Service) Load(ctx context.Context) ([]*models.JoinedResource, error) {
	resources, err := s.source.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	sellers, err := s.fetchSellers(ctx, uniqueSellerIDs(resources))
	if err != nil {
		return nil, err
	}

	return Join(resources, sellers), nil
}

// View loads the catalog and derives the requested page and the facets
func (s *Service) View(ctx context.Context, q models.CatalogQuery) (*View, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	filtered := Sort(Filter(all, q.Filter), q.Sort)

	return &View{
		Page:   Paginate(filtered, q.Page, q.Limit),
		Facets: Facets(all),
	}, nil
}

func (s *Service) fetchSellers(ctx context.Context, ids []int64) ([]*models.Seller, error) {
	sellers := make([]*models.Seller, len(ids))

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			seller, err := s.source.GetUser(gctx, id)
			if err != nil || seller == nil {
				mu.Lock()
				failed++
				mu.Unlock()
				s.logger.Warn("seller lookup failed, using placeholder",
					zap.Int64("seller_id", id),
					zap.Error(err),
				)
				seller = PlaceholderSeller(id)
			}
			if seller.ID == 0 {
				seller.ID = id
			}
			sellers[i] = seller
			return nil
		})
	}

	// lookups never return errors, so Wait only reports cancellation
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("seller lookups interrupted: %w", err)
	}

	if failed > 0 {
		s.logger.Info("catalog joined with placeholder sellers",
			zap.Int("sellers", len(ids)),
			zap.Int("placeholders", failed),
		)
	}

	return sellers, nil
}

func uniqueSellerIDs(resources []*models.Resource) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range resources {
		if r == nil || seen[r.SellerID] {
			continue
		}
		seen[r.SellerID] = true
		ids = append(ids, r.SellerID)
	}
	return ids
}
