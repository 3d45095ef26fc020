// Package product は商品カタログのドメインロジックを提供する。
package product

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/tarkam/internal/metrics"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/repository"
)

// 入力値の上限。
const (
	MaxNameLength      = 100
	MaxThumbnailLength = 2048
	MaxPrice           = 2147483647
)

// CategoryPolicy は不明・未指定カテゴリの扱いを表す。
type CategoryPolicy int

const (
	// CategoryStrict は未指定・列挙外のカテゴリを検証エラーにする。
	CategoryStrict CategoryPolicy = iota
	// CategoryFallback は未指定・列挙外のカテゴリをotherとして受け入れる。
	CategoryFallback
)

// Input は商品の作成・更新時の入力値。
// Priceはフォーム値のまま文字列で受け取り、検証時に整数へ変換する。
type Input struct {
	Name           string
	Price          string
	Description    string
	Thumbnail      string
	Category       string
	IsFeatured     bool
	CategoryPolicy CategoryPolicy
}

// MutationRecorder は商品変更のメトリクス記録先。
type MutationRecorder interface {
	RecordProductMutation(op string)
}

// Service は商品のCRUDを提供する。
// 所有者の検証は呼び出し側（ハンドラー層）の責務とする。
type Service struct {
	repo    repository.ProductRepository
	metrics MutationRecorder
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnil可。
func NewService(repo repository.ProductRepository, metrics MutationRecorder) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create は入力を検証し、ownerIDを所有者とする商品を作成する。
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*model.Product, error) {
	fields, err := validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Product{
		ID:          uuid.New().String(),
		Name:        fields.name,
		Price:       fields.price,
		Description: fields.description,
		Thumbnail:   fields.thumbnail,
		Category:    fields.category,
		IsFeatured:  in.IsFeatured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ownerID != "" {
		owner := ownerID
		p.OwnerID = &owner
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.record(metrics.OpCreate)
	return p, nil
}

// Get は指定IDの商品を返す。存在しない場合やIDの形式が不正な場合はPRODUCT_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	if !isValidID(id) {
		return nil, model.NewProductNotFoundError(id)
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return p, nil
}

// List はスコープに該当する商品を登録順で返す。
func (s *Service) List(ctx context.Context, scope model.ProductScope) ([]*model.Product, error) {
	products, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Update はID・所有者以外の全フィールドを入力値で置き換える。
func (s *Service) Update(ctx context.Context, id string, in Input) error {
	if !isValidID(id) {
		return model.NewProductNotFoundError(id)
	}

	fields, err := validate(in)
	if err != nil {
		return err
	}

	p := &model.Product{
		ID:          id,
		Name:        fields.name,
		Price:       fields.price,
		Description: fields.description,
		Thumbnail:   fields.thumbnail,
		Category:    fields.category,
		IsFeatured:  in.IsFeatured,
		UpdatedAt:   s.now(),
	}

	found, err := s.repo.Update(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if !found {
		return model.NewProductNotFoundError(id)
	}

	s.record(metrics.OpUpdate)
	return nil
}

// Delete は商品を物理削除する。2回目の呼び出しはPRODUCT_NOT_FOUNDになる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if !isValidID(id) {
		return model.NewProductNotFoundError(id)
	}

	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if !found {
		return model.NewProductNotFoundError(id)
	}

	s.record(metrics.OpDelete)
	return nil
}

func (s *Service) record(op string) {
	if s.metrics != nil {
		s.metrics.RecordProductMutation(op)
	}
}

// validatedFields は検証済みの入力値。
type validatedFields struct {
	name        string
	price       int64
	description string
	thumbnail   *string
	category    model.Category
}

// validate は入力値を検証し、エラーがあれば*model.ValidationErrorを返す。
func validate(in Input) (*validatedFields, error) {
	verr := &model.ValidationError{}
	f := &validatedFields{}

	f.name = strings.TrimSpace(in.Name)
	switch {
	case f.name == "":
		verr.AddField("name", "This field is required.")
	case utf8.RuneCountInString(f.name) > MaxNameLength:
		verr.AddField("name", fmt.Sprintf("Ensure this value has at most %d characters.", MaxNameLength))
	}

	price := strings.TrimSpace(in.Price)
	if price == "" {
		verr.AddField("price", "This field is required.")
	} else {
		n, err := strconv.ParseInt(price, 10, 64)
		if err != nil || n < 0 || n > MaxPrice {
			verr.AddField("price", "Enter a non-negative whole number.")
		} else {
			f.price = n
		}
	}

	f.description = strings.TrimSpace(in.Description)
	if f.description == "" {
		verr.AddField("description", "This field is required.")
	}

	if thumb := strings.TrimSpace(in.Thumbnail); thumb != "" {
		if !isValidThumbnailURL(thumb) {
			verr.AddField("thumbnail", "Enter a valid URL.")
		} else {
			f.thumbnail = &thumb
		}
	}

	category, ok := model.ParseCategory(strings.TrimSpace(in.Category))
	switch {
	case ok:
		f.category = category
	case in.CategoryPolicy == CategoryFallback:
		f.category = model.CategoryOther
	case strings.TrimSpace(in.Category) == "":
		verr.AddField("category", "This field is required.")
	default:
		verr.AddField("category", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", in.Category))
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return f, nil
}

func isValidThumbnailURL(raw string) bool {
	if len(raw) > MaxThumbnailLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
