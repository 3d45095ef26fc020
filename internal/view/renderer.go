// Package view はHandlebarsテンプレートによるHTMLページの描画を提供する。
package view

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/hitoshi/tarkam/internal/model"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// ページテンプレート名。
const (
	PageMain          = "main"
	PageProductList   = "product_list"
	PageProductDetail = "product_detail"
	PageLogin         = "login"
	PageRegister      = "register"
	PageNotFound      = "not_found"
)

// partialPrefix で始まるテンプレートは全ページ共通のパーシャルとして登録する。
const partialPrefix = "layout_"

// Page は全ページ共通の表示情報。
type Page struct {
	Title     string
	Username  string
	LastLogin string
}

// Renderer は埋め込みテンプレートからHTMLを生成する。
type Renderer struct {
	appName   string
	templates map[string]*raymond.Template
}

// NewRenderer は埋め込みテンプレートをすべてパースしたRendererを生成する。
func NewRenderer(appName string) (*Renderer, error) {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	partials := make(map[string]string)
	sources := make(map[string]string)
	for _, entry := range entries {
		data, err := templateFS.ReadFile(path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".hbs")
		if strings.HasPrefix(name, partialPrefix) {
			partials[name] = string(data)
		} else {
			sources[name] = string(data)
		}
	}

	r := &Renderer{
		appName:   appName,
		templates: make(map[string]*raymond.Template, len(sources)),
	}
	for name, src := range sources {
		tpl, err := raymond.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		tpl.RegisterPartials(partials)
		r.templates[name] = tpl
	}

	return r, nil
}

// Render は指定テンプレートにデータを適用してwへ書き出す。
func (r *Renderer) Render(w io.Writer, name string, page Page, data map[string]any) error {
	tpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown template: %s", name)
	}

	ctx := map[string]any{
		"app_name":   r.appName,
		"title":      page.Title,
		"username":   page.Username,
		"last_login": page.LastLogin,
	}
	for k, v := range data {
		ctx[k] = v
	}

	out, err := tpl.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to render template %s: %w", name, err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// Main はメインページを描画する。
func (r *Renderer) Main(w io.Writer, page Page) error {
	categories := make([]map[string]any, 0, len(model.Categories))
	for _, c := range model.Categories {
		categories = append(categories, map[string]any{"value": string(c), "label": c.Label()})
	}
	return r.Render(w, PageMain, page, map[string]any{"categories": categories})
}

// ProductList は商品一覧ページを描画する。viewerIDの所有商品には削除ボタンを表示する。
func (r *Renderer) ProductList(w io.Writer, page Page, products []*model.Product, viewerID string, ownedOnly bool) error {
	items := make([]map[string]any, 0, len(products))
	for _, p := range products {
		items = append(items, productView(p, viewerID))
	}
	return r.Render(w, PageProductList, page, map[string]any{
		"products":   items,
		"owned_only": ownedOnly,
	})
}

// ProductDetail は商品詳細ページを描画する。
func (r *Renderer) ProductDetail(w io.Writer, page Page, p *model.Product, viewerID string) error {
	return r.Render(w, PageProductDetail, page, map[string]any{"product": productView(p, viewerID)})
}

// Login はログインページを描画する。nextはログイン後の遷移先。
func (r *Renderer) Login(w io.Writer, page Page, next string) error {
	return r.Render(w, PageLogin, page, map[string]any{"next": safeNext(next)})
}

// Register は登録ページを描画する。
func (r *Renderer) Register(w io.Writer, page Page) error {
	return r.Render(w, PageRegister, page, nil)
}

// NotFound は404ページを描画する。
func (r *Renderer) NotFound(w io.Writer, page Page) error {
	return r.Render(w, PageNotFound, page, nil)
}

func productView(p *model.Product, viewerID string) map[string]any {
	v := map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"price":          strconv.FormatInt(p.Price, 10),
		"description":    p.Description,
		"category":       p.Category.Label(),
		"category_value": string(p.Category),
		"is_featured":    p.IsFeatured,
		"owned":          viewerID != "" && p.IsOwnedBy(viewerID),
	}
	if p.Thumbnail != nil {
		v["thumbnail"] = *p.Thumbnail
		v["thumbnail_url"] = ProxiedImageURL(*p.Thumbnail)
	}
	if p.OwnerUsername != nil {
		v["owner"] = *p.OwnerUsername
	}
	return v
}

// ProxiedImageURL はサムネイルURLを画像プロキシ経由のURLに変換する。
func ProxiedImageURL(raw string) string {
	return "/proxy-image/?url=" + url.QueryEscape(raw)
}

// safeNext はサイト内の相対パスのみを遷移先として許可する。
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
