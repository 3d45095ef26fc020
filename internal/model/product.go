// Package model はドメインモデルを定義する。
package model

import "time"

// Category は商品カテゴリを表す。固定の列挙値のみ許可される。
type Category string

const (
	CategoryShoes       Category = "shoes"
	CategoryClothes     Category = "clothes"
	CategoryAccessories Category = "accessories"
	CategoryBalls       Category = "balls"
	CategoryOther       Category = "other"
)

// Categories は表示順に並べた全カテゴリ。
var Categories = []Category{
	CategoryShoes,
	CategoryClothes,
	CategoryAccessories,
	CategoryBalls,
	CategoryOther,
}

// ParseCategory は文字列をCategoryに変換する。列挙外の値ではfalseを返す。
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Label は画面表示用のカテゴリ名を返す。
func (c Category) Label() string {
	switch c {
	case CategoryShoes:
		return "Shoes"
	case CategoryClothes:
		return "Clothes"
	case CategoryAccessories:
		return "Accessories"
	case CategoryBalls:
		return "Balls"
	default:
		return "Other"
	}
}

// Product はカタログの商品を表す。
// OwnerIDとThumbnailはNULL許容のためポインタで保持する。
type Product struct {
	ID            string
	Name          string
	Price         int64
	Description   string
	Thumbnail     *string
	Category      Category
	IsFeatured    bool
	OwnerID       *string
	OwnerUsername *string // 一覧取得時にusersテーブルから結合される
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOwnedBy は指定ユーザーが商品の所有者かを返す。
func (p *Product) IsOwnedBy(userID string) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}

// ProductScope は商品一覧の取得範囲を表す。
// OwnerIDが空の場合は全件を表す。
type ProductScope struct {
	OwnerID string
}

// ScopeAll は全商品のスコープ。
var ScopeAll = ProductScope{}

// ScopeOwnedBy は指定ユーザー所有商品のスコープを返す。
func ScopeOwnedBy(userID string) ProductScope {
	return ProductScope{OwnerID: userID}
}

// IsAll は全件スコープかを返す。
func (s ProductScope) IsAll() bool {
	return s.OwnerID == ""
}
