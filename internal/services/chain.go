package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/psalter"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/types"
)

// ChainView is the single payload a participant needs to start reading:
// metadata, derived stats, and a pre-claimed next chapter so the client
// does not issue a second round-trip.
type ChainView struct {
  Chain      *types.Chain      `json:"chain"`
  Stats      ChainStats        `json:"stats"`
  Assignment *types.Assignment `json:"assignment,omitempty"`
  Books      []psalter.Book    `json:"books"`
}

type ChainService interface {
  Create(ctx context.Context, slug, displayName, reason string) (*types.Chain, error)
  GetBySlug(ctx context.Context, slug string) (*types.Chain, error)
  ListActive(ctx context.Context) ([]*types.Chain, error)
  FetchView(ctx context.Context, slug, holderID, strategy string) (*ChainView, error)
}

type chainService struct {
  db          *gorm.DB
  log         *logger.Logger
  chains      repos.ChainRepo
  cycles      repos.CycleStateRepo
  assignments AssignmentService
  stats       StatsService
}

func NewChainService(db *gorm.DB, log *logger.Logger, chains repos.ChainRepo, cycles repos.CycleStateRepo, assignments AssignmentService, stats StatsService) ChainService {
  return &chainService{
    db:          db,
    log:         log.With("service", "ChainService"),
    chains:      chains,
    cycles:      cycles,
    assignments: assignments,
    stats:       stats,
  }
}

func (s *chainService) Create(ctx context.Context, slug, displayName, reason string) (*types.Chain, error) {
  slug = strings.TrimSpace(strings.ToLower(slug))
  if slug == "" || strings.TrimSpace(displayName) == "" {
    return nil, fmt.Errorf("create chain: %w: slug and display name required", apperrors.ErrInvalidArgument)
  }
  var out *types.Chain
  err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    row, err := s.chains.Create(ctx, txx, &types.Chain{
      Slug:        slug,
      DisplayName: strings.TrimSpace(displayName),
      Reason:      strings.TrimSpace(reason),
      Active:      true,
    })
    if err != nil {
      return err
    }
    // Every chain starts in cycle 1 with nothing completed.
    if _, err := s.cycles.Create(ctx, txx, row.ID); err != nil {
      return err
    }
    out = row
    return nil
  })
  if err != nil {
    return nil, err
  }
  s.log.Info("Chain created", "slug", out.Slug, "chain_id", out.ID)
  return out, nil
}

func (s *chainService) GetBySlug(ctx context.Context, slug string) (*types.Chain, error) {
  row, err := s.chains.GetBySlug(ctx, nil, slug)
  if err != nil {
    return nil, err
  }
  if row == nil {
    return nil, fmt.Errorf("chain %q: %w", slug, apperrors.ErrNotFound)
  }
  return row, nil
}

func (s *chainService) ListActive(ctx context.Context) ([]*types.Chain, error) {
  return s.chains.ListActive(ctx, nil)
}

func (s *chainService) FetchView(ctx context.Context, slug, holderID, strategy string) (*ChainView, error) {
  chain, err := s.GetBySlug(ctx, slug)
  if err != nil {
    return nil, err
  }
  view := &ChainView{Chain: chain, Books: psalter.Books()}

  if holderID != "" {
    assignment, err := s.assignments.ClaimNext(ctx, chain.ID, holderID, strategy)
    if err != nil && !errors.Is(err, apperrors.ErrNoChapterAvailable) {
      return nil, err
    }
    view.Assignment = assignment
  }

  stats, err := s.stats.StatsFor(ctx, nil, chain.ID)
  if err != nil {
    return nil, err
  }
  view.Stats = stats
  return view, nil
}
