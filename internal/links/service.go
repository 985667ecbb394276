package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vijayg2124/affilink-performance-hub/internal/metrics"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/storage"
	"go.uber.org/zap"
)

// ErrValidation marks a rejected input. Nothing is written to storage when
// validation fails.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks an operation against a link the user does not own or
// that does not exist.
var ErrNotFound = errors.New("link not found")

// short code collisions are retried this many times before giving up
const maxShortCodeAttempts = 5

// CreateLinkInput is the payload for registering a new affiliate link.
type CreateLinkInput struct {
	UserID      string `json:"-"`
	Title       string `json:"title"`
	OriginalURL string `json:"original_url"`
	Platform    string `json:"platform"`
	Category    string `json:"category"`
}

// Service implements the link registry on top of a LinkRepo.
type Service struct {
	repo    storage.LinkRepo
	logger  *zap.Logger
	metrics *metrics.Metrics
	baseURL string
	window  time.Duration
}

// NewService creates a link registry service. baseURL is the public prefix
// for short URLs (e.g. https://afl.ink). window bounds the per-link metric
// computation. m may be nil.
func NewService(repo storage.LinkRepo, baseURL string, window time.Duration, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: m,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		window:  window,
	}
}

// Create validates and registers a new link. The short code is generated
// server-side and retried on collision.
func (s *Service) Create(ctx context.Context, in CreateLinkInput) (*models.AffiliateLink, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.OriginalURL = strings.TrimSpace(in.OriginalURL)
	in.Platform = strings.TrimSpace(in.Platform)
	in.Category = strings.TrimSpace(in.Category)

	if err := s.validate(in); err != nil {
		s.recordOp("create", "invalid")
		return nil, err
	}

	if in.Category == "" {
		in.Category = models.DefaultCategory
	}

	link := &models.AffiliateLink{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Title:       in.Title,
		OriginalURL: in.OriginalURL,
		Platform:    in.Platform,
		Category:    in.Category,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}

	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		code, err := newShortCode()
		if err != nil {
			s.recordOp("create", "error")
			return nil, err
		}

		existing, err := s.repo.GetLinkByShortCode(ctx, code)
		if err != nil {
			s.recordOp("create", "error")
			return nil, fmt.Errorf("failed to check short code: %w", err)
		}
		if existing != nil {
			continue
		}

		link.ShortCode = code
		link.ShortURL = fmt.Sprintf("%s/%s", s.baseURL, code)

		err = s.repo.InsertLink(ctx, link)
		if err == storage.ErrShortCodeTaken {
			// Lost a race on the code; try a fresh one.
			continue
		}
		if err != nil {
			s.recordOp("create", "error")
			return nil, err
		}

		s.recordOp("create", "ok")
		s.logger.Info("link created",
			zap.String("link_id", link.ID),
			zap.String("user_id", link.UserID),
			zap.String("short_code", link.ShortCode),
			zap.String("platform", link.Platform),
		)
		return link, nil
	}

	s.recordOp("create", "error")
	return nil, fmt.Errorf("failed to allocate short code after %d attempts", maxShortCodeAttempts)
}

// List returns the user's links with per-link performance metrics attached.
func (s *Service) List(ctx context.Context, userID string, filter storage.LinkFilter) ([]*models.LinkWithMetrics, error) {
	linkList, err := s.repo.ListLinks(ctx, userID, filter)
	if err != nil {
		s.recordOp("list", "error")
		return nil, err
	}

	metricsByID, err := s.repo.LinkMetricsByID(ctx, userID, time.Now().Add(-s.window))
	if err != nil {
		// Serve the links without metrics rather than failing the list.
		s.logger.Warn("failed to compute link metrics", zap.Error(err))
		metricsByID = map[string]models.LinkMetrics{}
	}

	result := make([]*models.LinkWithMetrics, 0, len(linkList))
	active := 0
	for _, link := range linkList {
		if link.IsActive {
			active++
		}
		result = append(result, &models.LinkWithMetrics{
			AffiliateLink: *link,
			Metrics:       metricsByID[link.ID],
		})
	}

	if s.metrics != nil && filter == (storage.LinkFilter{}) {
		s.metrics.SetActiveLinks(active)
	}
	s.recordOp("list", "ok")
	return result, nil
}

// SetActive flips a link's active flag. Inactive links keep their history
// but stop appearing as active in the registry.
func (s *Service) SetActive(ctx context.Context, userID, id string, active bool) error {
	if err := s.authorize(ctx, userID, id); err != nil {
		s.recordOp("set_active", "error")
		return err
	}

	if err := s.repo.SetLinkActive(ctx, id, active); err != nil {
		if err == storage.ErrLinkNotFound {
			s.recordOp("set_active", "not_found")
			return ErrNotFound
		}
		s.recordOp("set_active", "error")
		return err
	}

	s.recordOp("set_active", "ok")
	s.logger.Info("link active flag updated",
		zap.String("link_id", id),
		zap.Bool("active", active),
	)
	return nil
}

// Delete removes a link.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.authorize(ctx, userID, id); err != nil {
		s.recordOp("delete", "error")
		return err
	}

	if err := s.repo.DeleteLink(ctx, id); err != nil {
		if err == storage.ErrLinkNotFound {
			s.recordOp("delete", "not_found")
			return ErrNotFound
		}
		s.recordOp("delete", "error")
		return err
	}

	s.recordOp("delete", "ok")
	s.logger.Info("link deleted", zap.String("link_id", id))
	return nil
}

// authorize verifies the link exists and belongs to the user.
func (s *Service) authorize(ctx context.Context, userID, id string) error {
	link, err := s.repo.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if link == nil || link.UserID != userID {
		return ErrNotFound
	}
	return nil
}

func (s *Service) validate(in CreateLinkInput) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.OriginalURL == "" {
		return fmt.Errorf("%w: original_url is required", ErrValidation)
	}
	u, err := url.Parse(in.OriginalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: original_url must be a valid http(s) URL", ErrValidation)
	}
	if in.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrValidation)
	}
	return nil
}

func (s *Service) recordOp(operation, status string) {
	if s.metrics != nil {
		s.metrics.RecordLinkOperation(operation, status)
	}
}
