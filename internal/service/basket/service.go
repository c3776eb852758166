package basket

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"learnstore/internal/domain"
	basketrepo "learnstore/internal/repository/basket"
	"learnstore/internal/tasks"
)

var (
	ErrNoSKUs           = errors.New("no SKUs provided")
	ErrProductsNotFound = errors.New("products with the given SKUs do not exist")
	ErrNothingAvailable = errors.New("no product is available to buy")
	ErrAlreadyPurchased = errors.New("you have already purchased these products")
	ErrInvalidQuantity  = errors.New("quantity must not be negative")
	ErrLineIDRequired   = errors.New("lineId required")
)

type Service struct {
	repo        basketRepo
	products    productRepo
	orders      orderRepo
	offers      offerApplicator
	enrollments enrollmentSender
	features    Features
	logger      *log.Logger
}

type basketRepo interface {
	Create(ctx context.Context, in basketrepo.CreateBasketInput) (*domain.Basket, error)
	GetByID(ctx context.Context, siteID, id string) (*domain.Basket, error)
	GetOpenByOwner(ctx context.Context, siteID, owner string) (*domain.Basket, error)
	AddLine(ctx context.Context, basketID string, product domain.Product, quantity int) error
	ChangeLineQuantity(ctx context.Context, basketID, lineID string, quantity int) error
}

type productRepo interface {
	ListBySKUs(ctx context.Context, siteID string, skus []string) ([]domain.Product, error)
}

type orderRepo interface {
	PurchasedSKUs(ctx context.Context, siteID, username string, skus []string) ([]string, error)
}

type offerApplicator interface {
	Apply(ctx context.Context, site domain.Site, basket *domain.Basket) error
}

type enrollmentSender interface {
	UpdateCourseEnrollment(ctx context.Context, e tasks.CourseEnrollment) error
}

// Features toggles the side effects of basket changes.
type Features struct {
	SailthruEnable bool
}

type Deps struct {
	Repo        basketRepo
	Products    productRepo
	Orders      orderRepo
	Offers      offerApplicator
	Enrollments enrollmentSender
	Features    Features
	Logger      *log.Logger
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		repo:        deps.Repo,
		products:    deps.Products,
		orders:      deps.Orders,
		offers:      deps.Offers,
		enrollments: deps.Enrollments,
		features:    deps.Features,
		logger:      logger,
	}
}

// AddInput carries the SKUs to put in the buyer's open basket.
type AddInput struct {
	SKUs      []string `json:"skus"`
	Currency  string   `json:"currency,omitempty"`
	MessageID string   `json:"-"`
}

type ChangeQuantityInput struct {
	LineID   string `json:"lineId"`
	Quantity int    `json:"quantity"`
}

// AddItems adds the available, not yet purchased products to the buyer's open
// basket, creating the basket when needed.
func (s *Service) AddItems(ctx context.Context, site domain.Site, user domain.User, in AddInput) (*domain.Basket, error) {
	skus := cleanSKUs(in.SKUs)
	if len(skus) == 0 {
		return nil, ErrNoSKUs
	}
	products, err := s.products.ListBySKUs(ctx, site.ID, skus)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductsNotFound
	}

	available := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !p.IsAvailable {
			s.logger.Printf("basket service: product not available to buy sku=%s", p.SKU)
			continue
		}
		available = append(available, p)
	}
	if len(available) == 0 {
		return nil, ErrNothingAvailable
	}

	toAdd, err := s.withoutPurchased(ctx, site, user, available)
	if err != nil {
		return nil, err
	}

	basket, err := s.openBasket(ctx, site, user, in.Currency, toAdd[0].Currency)
	if err != nil {
		return nil, err
	}
	present := basket.SKUs()
	for _, p := range toAdd {
		if _, ok := present[p.SKU]; ok {
			continue
		}
		if err := s.repo.AddLine(ctx, basket.ID, p, 1); err != nil {
			return nil, err
		}
		s.basketAddition(ctx, site, user, p, in.MessageID)
	}
	s.logger.Printf("basket service: added basket_id=%s user=%s skus=%s", basket.ID, user.Username, strings.Join(skus, ","))
	return s.Get(ctx, site, user, basket.ID)
}

func (s *Service) withoutPurchased(ctx context.Context, site domain.Site, user domain.User, products []domain.Product) ([]domain.Product, error) {
	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.SKU)
	}
	purchased, err := s.orders.PurchasedSKUs(ctx, site.ID, user.Username, skus)
	if err != nil {
		return nil, err
	}
	if len(purchased) == 0 {
		return products, nil
	}
	bought := make(map[string]struct{}, len(purchased))
	for _, sku := range purchased {
		bought[sku] = struct{}{}
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, ok := bought[p.SKU]; !ok {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrAlreadyPurchased
	}
	return out, nil
}

func (s *Service) openBasket(ctx context.Context, site domain.Site, user domain.User, currency, fallback string) (*domain.Basket, error) {
	basket, err := s.repo.GetOpenByOwner(ctx, site.ID, user.Username)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if strings.TrimSpace(currency) == "" {
		currency = fallback
	}
	return s.repo.Create(ctx, basketrepo.CreateBasketInput{
		SiteID:     site.ID,
		Owner:      user.Username,
		OwnerEmail: user.Email,
		Currency:   currency,
	})
}

// basketAddition tells the marketing platform a paid seat entered a basket.
// Failures are logged only.
func (s *Service) basketAddition(ctx context.Context, site domain.Site, user domain.User, p domain.Product, messageID string) {
	if !s.features.SailthruEnable || s.enrollments == nil || p.PriceCents <= 0 {
		return
	}
	err := s.enrollments.UpdateCourseEnrollment(ctx, tasks.CourseEnrollment{
		Email:              user.Email,
		CourseURL:          strings.TrimRight(site.LMSURL, "/") + "/courses/" + p.CourseID + "/info",
		PurchaseIncomplete: true,
		Mode:               p.SeatType,
		UnitCostCents:      p.PriceCents,
		CourseID:           p.CourseID,
		Currency:           p.Currency,
		SiteCode:           site.PartnerCode,
		MessageID:          messageID,
	})
	if err != nil {
		s.logger.Printf("basket service: basket addition sync failed user=%s sku=%s error=%v", user.Username, p.SKU, err)
	}
}

// Get returns the buyer's basket with offers recomputed.
func (s *Service) Get(ctx context.Context, site domain.Site, user domain.User, id string) (*domain.Basket, error) {
	basket, err := s.owned(ctx, site, user, id)
	if err != nil {
		return nil, err
	}
	if s.offers != nil && basket.IsOpen() {
		if err := s.offers.Apply(ctx, site, basket); err != nil {
			return nil, err
		}
	}
	return basket, nil
}

// ChangeQuantity sets the quantity of a line; zero removes it.
func (s *Service) ChangeQuantity(ctx context.Context, site domain.Site, user domain.User, basketID string, in ChangeQuantityInput) (*domain.Basket, error) {
	lineID := strings.TrimSpace(in.LineID)
	if lineID == "" {
		return nil, ErrLineIDRequired
	}
	if in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.owned(ctx, site, user, basketID); err != nil {
		return nil, err
	}
	if err := s.repo.ChangeLineQuantity(ctx, basketID, lineID, in.Quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, site, user, basketID)
}

func (s *Service) owned(ctx context.Context, site domain.Site, user domain.User, id string) (*domain.Basket, error) {
	basket, err := s.repo.GetByID(ctx, site.ID, id)
	if err != nil {
		return nil, err
	}
	if basket.Owner != user.Username {
		return nil, domain.ErrNotFound
	}
	return basket, nil
}

func cleanSKUs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, sku := range raw {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}
