package database

import (
	"context"
	"database/sql"
	"errors"

	"vidos-entegrasyon/core"
)

// SaveCategories, platform kategorilerini tek transaction'da yazar (varsa ezer).
func (s *Store) SaveCategories(ctx context.Context, cats []core.PlatformCategory) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO platform_categories
			(platform, category_id, category_name, parent_id, is_leaf) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range cats {
			if _, err := stmt.ExecContext(ctx, c.Platform, c.CategoryID, c.CategoryName, c.ParentID, boolToInt(c.IsLeaf)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LeafCategories: ürün yüklenebilen en alt kategoriler
func (s *Store) LeafCategories(ctx context.Context, platform string) ([]core.PlatformCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT platform, category_id, category_name, parent_id, is_leaf
		FROM platform_categories WHERE platform = ? AND is_leaf = 1 ORDER BY category_name`, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.PlatformCategory
	for rows.Next() {
		var c core.PlatformCategory
		var leaf int
		if err := rows.Scan(&c.Platform, &c.CategoryID, &c.CategoryName, &c.ParentID, &leaf); err != nil {
			return nil, err
		}
		c.IsLeaf = leaf == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CategoryName(ctx context.Context, platform, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT category_name FROM platform_categories WHERE platform = ? AND category_id = ?`,
		platform, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	return name, err
}

func (s *Store) CategoryMapping(ctx context.Context, userID int64, platform, sourceCategory string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT category_id FROM category_mappings
		WHERE user_id = ? AND platform = ? AND source_category = ?`, userID, platform, sourceCategory).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	return id, err
}

func (s *Store) SaveCategoryMapping(ctx context.Context, userID int64, platform, sourceCategory, categoryID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO category_mappings (user_id, platform, source_category, category_id)
		VALUES (?, ?, ?, ?)`, userID, platform, sourceCategory, categoryID)
	return err
}

// BrandMappings: kaynak marka -> hedef marka
func (s *Store) BrandMappings(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_brand, target_brand FROM brand_mappings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			return nil, err
		}
		out[src] = dst
	}
	return out, rows.Err()
}

func (s *Store) SaveBrandMapping(ctx context.Context, userID int64, source, target string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO brand_mappings (user_id, source_brand, target_brand)
		VALUES (?, ?, ?)`, userID, source, target)
	return err
}

func (s *Store) AddBlacklist(ctx context.Context, userID int64, kind core.BlacklistKind, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO blacklist (user_id, kind, value) VALUES (?, ?, ?)`,
		userID, string(kind), value)
	return err
}

func (s *Store) Blacklist(ctx context.Context, userID int64) ([]core.BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, kind, value FROM blacklist WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.BlacklistEntry
	for rows.Next() {
		var e core.BlacklistEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &e.Value); err != nil {
			return nil, err
		}
		e.Kind = core.BlacklistKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
