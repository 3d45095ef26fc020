// Package serialize は商品をフィード・モバイル向けのXML/JSON表現に変換する。
package serialize

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/hitoshi/tarkam/internal/model"
)

// ProductObject はJSONフィードの商品1件分のフラットな表現。
// thumbnailとuser_idは値がない場合nullになる。
type ProductObject struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       int64   `json:"price"`
	Description string  `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
	Category    string  `json:"category"`
	IsFeatured  bool    `json:"is_featured"`
	UserID      *string `json:"user_id"`
}

// ProductDetailObject は単一商品JSONの表現。所有者がいる場合のみユーザー名を含む。
type ProductDetailObject struct {
	ProductObject
	UserUsername *string `json:"user_username,omitempty"`
}

// ProductJSON は一覧用のJSONオブジェクトを返す。
func ProductJSON(p *model.Product) ProductObject {
	return ProductObject{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Thumbnail:   p.Thumbnail,
		Category:    string(p.Category),
		IsFeatured:  p.IsFeatured,
		UserID:      p.OwnerID,
	}
}

// ProductsJSON は商品一覧をJSONオブジェクトの配列に変換する。空の場合も空配列を返す。
func ProductsJSON(ps []*model.Product) []ProductObject {
	objs := make([]ProductObject, 0, len(ps))
	for _, p := range ps {
		objs = append(objs, ProductJSON(p))
	}
	return objs
}

// ProductDetailJSON は単一商品用のJSONオブジェクトを返す。
func ProductDetailJSON(p *model.Product) ProductDetailObject {
	obj := ProductDetailObject{ProductObject: ProductJSON(p)}
	if p.OwnerID != nil && p.OwnerUsername != nil {
		obj.UserUsername = p.OwnerUsername
	}
	return obj
}

type xmlProducts struct {
	XMLName  xml.Name     `xml:"products"`
	Products []xmlProduct `xml:"product"`
}

type xmlProduct struct {
	ID          string  `xml:"id,attr"`
	Name        string  `xml:"name"`
	Price       int64   `xml:"price"`
	Description string  `xml:"description"`
	Thumbnail   *string `xml:"thumbnail,omitempty"`
	Category    string  `xml:"category"`
	IsFeatured  string  `xml:"is_featured"`
	UserID      *string `xml:"user_id,omitempty"`
}

// ProductsXML は商品一覧を<products>要素で囲んだXML文書に変換する。
// 単一商品のフィードも同じ形式で1件のみを含める。
func ProductsXML(ps []*model.Product) ([]byte, error) {
	doc := xmlProducts{Products: make([]xmlProduct, 0, len(ps))}
	for _, p := range ps {
		doc.Products = append(doc.Products, xmlProduct{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
			Thumbnail:   p.Thumbnail,
			Category:    string(p.Category),
			IsFeatured:  strconv.FormatBool(p.IsFeatured),
			UserID:      p.OwnerID,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal products xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
