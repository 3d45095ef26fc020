package serialize

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/hitoshi/tarkam/internal/model"
)

func strPtr(s string) *string { return &s }

func ball() *model.Product {
	return &model.Product{
		ID:            "22222222-2222-4222-8222-222222222222",
		Name:          "Ball",
		Price:         100,
		Description:   "d",
		Category:      model.CategoryBalls,
		OwnerID:       strPtr("11111111-1111-4111-8111-111111111111"),
		OwnerUsername: strPtr("A"),
	}
}

// TestProductDetailJSON_Ball は所有者付き商品の単一JSONが期待どおりのキーと値を持つことを検証する。
func TestProductDetailJSON_Ball(t *testing.T) {
	body, err := json.Marshal(ProductDetailJSON(ball()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"id":"22222222-2222-4222-8222-222222222222","name":"Ball","price":100,"description":"d",` +
		`"thumbnail":null,"category":"balls","is_featured":false,` +
		`"user_id":"11111111-1111-4111-8111-111111111111","user_username":"A"}`
	if string(body) != want {
		t.Errorf("got  %s\nwant %s", body, want)
	}
}

func TestProductDetailJSON_UnownedOmitsUsername(t *testing.T) {
	p := ball()
	p.OwnerID = nil
	p.OwnerUsername = nil

	body, _ := json.Marshal(ProductDetailJSON(p))
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got["user_username"]; ok {
		t.Error("user_username must be absent for unowned products")
	}
	if v, ok := got["user_id"]; !ok || v != nil {
		t.Errorf("user_id = %v (present=%v), want null", v, ok)
	}
}

func TestProductJSON_ListFormHasNoUsername(t *testing.T) {
	body, _ := json.Marshal(ProductsJSON([]*model.Product{ball()}))
	if strings.Contains(string(body), "user_username") {
		t.Errorf("list form must not include user_username: %s", body)
	}
	if !strings.HasPrefix(string(body), `[{"id":`) {
		t.Errorf("unexpected list body: %s", body)
	}
}

func TestProductsJSON_EmptyIsArray(t *testing.T) {
	body, _ := json.Marshal(ProductsJSON(nil))
	if string(body) != "[]" {
		t.Errorf("got %s, want []", body)
	}
}

func TestProductsXML_Structure(t *testing.T) {
	withThumb := ball()
	withThumb.ID = "33333333-3333-4333-8333-333333333333"
	withThumb.Thumbnail = strPtr("https://example.com/b.png")
	withThumb.IsFeatured = true

	unowned := ball()
	unowned.OwnerID = nil

	body, err := ProductsXML([]*model.Product{withThumb, unowned})
	if err != nil {
		t.Fatalf("ProductsXML returned error: %v", err)
	}
	if !strings.HasPrefix(string(body), "<?xml") {
		t.Error("expected XML declaration")
	}

	var doc struct {
		Products []struct {
			ID         string  `xml:"id,attr"`
			Name       string  `xml:"name"`
			Price      int64   `xml:"price"`
			Thumbnail  *string `xml:"thumbnail"`
			Category   string  `xml:"category"`
			IsFeatured bool    `xml:"is_featured"`
			UserID     *string `xml:"user_id"`
		} `xml:"product"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Products) != 2 {
		t.Fatalf("len = %d, want 2", len(doc.Products))
	}

	first := doc.Products[0]
	if first.ID != withThumb.ID || first.Name != "Ball" || first.Price != 100 || first.Category != "balls" {
		t.Errorf("unexpected first product: %+v", first)
	}
	if first.Thumbnail == nil || *first.Thumbnail != "https://example.com/b.png" {
		t.Errorf("thumbnail = %v", first.Thumbnail)
	}
	if !first.IsFeatured {
		t.Error("is_featured should be true")
	}

	second := doc.Products[1]
	if second.Thumbnail != nil {
		t.Error("thumbnail element should be omitted when absent")
	}
	if second.UserID != nil {
		t.Error("user_id element should be omitted when unowned")
	}
}

func TestProductsXML_EscapesMarkup(t *testing.T) {
	p := ball()
	p.Name = `<b>"Ball" & co</b>`

	body, err := ProductsXML([]*model.Product{p})
	if err != nil {
		t.Fatalf("ProductsXML returned error: %v", err)
	}
	if strings.Contains(string(body), "<b>") {
		t.Errorf("markup not escaped: %s", body)
	}
}

func TestProductsXML_Empty(t *testing.T) {
	body, err := ProductsXML(nil)
	if err != nil {
		t.Fatalf("ProductsXML returned error: %v", err)
	}
	if !strings.Contains(string(body), "<products></products>") {
		t.Errorf("unexpected empty document: %s", body)
	}
}
