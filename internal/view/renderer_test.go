package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hitoshi/tarkam/internal/model"
)

func strPtr(s string) *string { return &s }

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Tarkam Store")
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}
	return r
}

func TestNewRenderer_ParsesAllPages(t *testing.T) {
	r := newTestRenderer(t)
	for _, name := range []string{PageMain, PageProductList, PageProductDetail, PageLogin, PageRegister, PageNotFound} {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %q not loaded", name)
		}
	}
	if _, ok := r.templates["layout_header"]; ok {
		t.Error("layout partials should not be registered as pages")
	}
}

func TestMain_ShowsLastLoginAndCategories(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer

	err := r.Main(&buf, Page{Title: "Home", Username: "alice", LastLogin: "2026-01-02 03:04:05"})
	if err != nil {
		t.Fatalf("Main returned error: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<title>Home | Tarkam Store</title>",
		"Last login: 2026-01-02 03:04:05",
		"Signed in as alice",
		`<option value="balls">Balls</option>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("main page missing %q", want)
		}
	}
}

func TestProductList_EscapesAndMarksOwned(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer

	products := []*model.Product{
		{ID: "p1", Name: "<script>x</script>", Price: 100, Category: model.CategoryBalls, OwnerID: strPtr("u1")},
		{ID: "p2", Name: "Shoe", Price: 250, Category: model.CategoryShoes, OwnerID: strPtr("u2"),
			Thumbnail: strPtr("https://example.com/s.png?a=1&b=2")},
	}

	if err := r.ProductList(&buf, Page{Title: "Products", Username: "alice", LastLogin: "Never"}, products, "u1", false); err != nil {
		t.Fatalf("ProductList returned error: %v", err)
	}
	html := buf.String()

	if strings.Contains(html, "<script>x</script>") {
		t.Error("product name must be HTML escaped")
	}
	if strings.Count(html, `data-action="delete"`) != 1 {
		t.Error("only the viewer's own product should offer delete")
	}
	if !strings.Contains(html, "/proxy-image/?url=https%3A%2F%2Fexample.com%2Fs.png%3Fa%3D1%26b%3D2") {
		t.Error("thumbnail should be routed through the image proxy")
	}
	if !strings.Contains(html, "Last login: Never") {
		t.Error("expected default last-login marker")
	}
}

func TestProductList_Empty(t *testing.T) {
	r := newTestRenderer(t)
	var buf bytes.Buffer

	if err := r.ProductList(&buf, Page{Title: "Products"}, nil, "u1", true); err != nil {
		t.Fatalf("ProductList returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "No products yet.") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(buf.String(), "My products") {
		t.Error("expected owned-only heading")
	}
}

func TestProductDetail_OwnerSeesEditForm(t *testing.T) {
	r := newTestRenderer(t)
	p := &model.Product{ID: "p1", Name: "Ball", Price: 100, Description: "d", Category: model.CategoryBalls,
		OwnerID: strPtr("u1"), OwnerUsername: strPtr("alice")}

	var owner, other bytes.Buffer
	if err := r.ProductDetail(&owner, Page{Title: "Ball"}, p, "u1"); err != nil {
		t.Fatalf("ProductDetail returned error: %v", err)
	}
	if err := r.ProductDetail(&other, Page{Title: "Ball"}, p, "u2"); err != nil {
		t.Fatalf("ProductDetail returned error: %v", err)
	}

	if !strings.Contains(owner.String(), `action="/edit-product-ajax/p1"`) {
		t.Error("owner should see the edit form")
	}
	if strings.Contains(other.String(), "/edit-product-ajax/") {
		t.Error("non-owner must not see the edit form")
	}
	if !strings.Contains(other.String(), "Sold by alice") {
		t.Error("expected owner username")
	}
}

func TestLogin_SanitizesNext(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		next string
		want string
	}{
		{"/products/", `value="/products/"`},
		{"//evil.example.com", `value="/"`},
		{"https://evil.example.com", `value="/"`},
		{"", `value="/"`},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := r.Login(&buf, Page{Title: "Login"}, tt.next); err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("next=%q: expected %s", tt.next, tt.want)
		}
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)
	if err := r.Render(&bytes.Buffer{}, "missing", Page{}, nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestRegisterAndNotFound_Render(t *testing.T) {
	r := newTestRenderer(t)

	var reg, nf bytes.Buffer
	if err := r.Register(&reg, Page{Title: "Register"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := r.NotFound(&nf, Page{Title: "Not Found"}); err != nil {
		t.Fatalf("NotFound returned error: %v", err)
	}
	if !strings.Contains(reg.String(), `name="confirm_password"`) {
		t.Error("register page should include confirm_password")
	}
	if !strings.Contains(nf.String(), "<h1>Not Found</h1>") {
		t.Error("not found page heading missing")
	}
}
