package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tarkam/internal/model"
)

// productColumns は商品取得時のSELECT句。所有者名はLEFT JOINで取得する。
const productColumns = `p.id, p.name, p.price, p.description, p.thumbnail, p.category,
	p.is_featured, p.user_id, u.username, p.created_at, p.updated_at`

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+`
		 FROM products p
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// List はスコープに該当する商品を登録順（seq昇順）に返す。
func (r *PostgresProductRepo) List(ctx context.Context, scope model.ProductScope) ([]*model.Product, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if scope.IsAll() {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+`
			 FROM products p
			 LEFT JOIN users u ON u.id = p.user_id
			 ORDER BY p.seq ASC`,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+productColumns+`
			 FROM products p
			 LEFT JOIN users u ON u.id = p.user_id
			 WHERE p.user_id = $1
			 ORDER BY p.seq ASC`,
			scope.OwnerID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// Create は商品を作成する。seqはDB側で採番される。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, description, thumbnail, category,
		                       is_featured, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Price, p.Description, nullString(p.Thumbnail), string(p.Category),
		p.IsFeatured, nullString(p.OwnerID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update はID・所有者・作成日時以外のフィールドを上書きする。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, price = $3, description = $4, thumbnail = $5,
		     category = $6, is_featured = $7, updated_at = $8
		 WHERE id = $1`,
		p.ID, p.Name, p.Price, p.Description, nullString(p.Thumbnail),
		string(p.Category), p.IsFeatured, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// scanProduct は1行分の商品データをmodel.Productに変換する。
func scanProduct(s rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var category string
	var thumbnail, ownerID, ownerUsername sql.NullString

	err := s.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &thumbnail, &category,
		&p.IsFeatured, &ownerID, &ownerUsername, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Category = model.Category(category)
	p.Thumbnail = nullStringPtr(thumbnail)
	p.OwnerID = nullStringPtr(ownerID)
	p.OwnerUsername = nullStringPtr(ownerUsername)
	return p, nil
}

// nullString は*stringをsql.NullStringに変換する。
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullStringPtr はsql.NullStringを*stringに変換する。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
