package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Kind is what a logical path names.
type Kind int

const (
	KindNone Kind = iota
	KindCollection
	KindObject
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func cleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", newError(CodeInvalidInput, p, "logical path must be absolute")
	}
	return path.Clean(p), nil
}

// Stat reports what p names.
func (c *Catalog) Stat(ctx context.Context, p string) (Kind, error) {
	p, err := cleanPath(p)
	if err != nil {
		return KindNone, err
	}
	return stat(ctx, c.db, p)
}

func stat(ctx context.Context, q querier, p string) (Kind, error) {
	if p == "/" {
		return KindCollection, nil
	}
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE path = ?`, p).Scan(&one)
	switch {
	case err == nil:
		return KindCollection, nil
	case !errors.Is(err, sql.ErrNoRows):
		return KindNone, fmt.Errorf("stat %s: %w", p, err)
	}

	_, err = objectID(ctx, q, p)
	switch {
	case err == nil:
		return KindObject, nil
	case IsCode(err, CodeNoRows):
		return KindNone, nil
	default:
		return KindNone, err
	}
}

func collectionID(ctx context.Context, q querier, p string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM collections WHERE path = ?`, p).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, newError(CodeUnknownCollection, p, "collection does not exist")
	}
	if err != nil {
		return 0, fmt.Errorf("look up collection %s: %w", p, err)
	}
	return id, nil
}

// MakeCollection creates the collection at p. With parents, missing
// ancestors are created and an existing collection is not an error.
func (c *Catalog) MakeCollection(ctx context.Context, p string, parents bool) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if p == "/" {
		if parents {
			return nil
		}
		return newError(CodeAlreadyExists, p, "collection already exists")
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		var chain []string
		for cur := p; cur != "/"; cur = path.Dir(cur) {
			chain = append([]string{cur}, chain...)
		}

		for i, coll := range chain {
			kind, err := stat(ctx, tx, coll)
			if err != nil {
				return err
			}
			last := i == len(chain)-1
			switch kind {
			case KindObject:
				return newError(CodeAlreadyExists, coll, "a data object exists at this path")
			case KindCollection:
				if last && !parents {
					return newError(CodeAlreadyExists, coll, "collection already exists")
				}
				continue
			}
			if !last && !parents {
				return newError(CodeUnknownCollection, coll, "parent collection does not exist")
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO collections (path, parent, created_at) VALUES (?, ?, ?)`,
				coll, path.Dir(coll), c.timestamp(),
			); err != nil {
				return fmt.Errorf("create collection %s: %w", coll, err)
			}
		}
		return nil
	})
}

// Listing is the content of one collection.
type Listing struct {
	Path        string
	Collections []string
	Objects     []Object
}

// List returns the subcollections and data objects directly under p.
func (c *Catalog) List(ctx context.Context, p string) (*Listing, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	kind, err := stat(ctx, c.db, p)
	if err != nil {
		return nil, err
	}
	if kind != KindCollection {
		return nil, newError(CodeNoRows, p, "collection does not exist")
	}

	listing := &Listing{Path: p}

	rows, err := c.db.QueryContext(ctx, `SELECT path FROM collections WHERE parent = ? AND path != '/' ORDER BY path`, p)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list %s: %w", p, err)
		}
		listing.Collections = append(listing.Collections, sub)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	rows, err = c.db.QueryContext(ctx, `
		SELECT d.name FROM data_objects d
		JOIN collections c ON d.coll_id = c.id
		WHERE c.path = ?
		ORDER BY d.name
	`, p)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list %s: %w", p, err)
		}
		names = append(names, name)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	for _, name := range names {
		obj, err := c.Object(ctx, path.Join(p, name))
		if err != nil {
			return nil, err
		}
		listing.Objects = append(listing.Objects, *obj)
	}
	return listing, nil
}

// Remove deletes the object or collection at p. A non-empty collection
// needs recursive.
func (c *Catalog) Remove(ctx context.Context, p string, recursive bool) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if p == "/" {
		return newError(CodeInvalidInput, p, "cannot remove the root collection")
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		kind, err := stat(ctx, tx, p)
		if err != nil {
			return err
		}
		switch kind {
		case KindNone:
			return newError(CodeNoRows, p, "does not exist")
		case KindObject:
			id, err := objectID(ctx, tx, p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM data_objects WHERE id = ?`, id); err != nil {
				return fmt.Errorf("remove %s: %w", p, err)
			}
			return nil
		}

		if !recursive {
			var children int
			if err := tx.QueryRowContext(ctx, `
				SELECT (SELECT COUNT(*) FROM collections WHERE parent = ?) +
				       (SELECT COUNT(*) FROM data_objects d JOIN collections c ON d.coll_id = c.id WHERE c.path = ?)
			`, p, p).Scan(&children); err != nil {
				return fmt.Errorf("remove %s: %w", p, err)
			}
			if children > 0 {
				return newError(CodeCollectionNotEmpty, p, "collection is not empty")
			}
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM collections
			WHERE path = ? OR substr(path, 1, length(?) + 1) = ? || '/'
		`, p, p, p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		return nil
	})
}
