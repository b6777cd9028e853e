package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/roach88/replcheck/internal/replica"
)

// Catalog status codes outside the scenario status set.
const (
	// StatusIntermediate marks a replica being written.
	StatusIntermediate = 2

	maxStatus = 4
)

// Replica is one replica row.
type Replica struct {
	Number    int
	Hierarchy string
	Status    int
	Size      int64
	Modified  time.Time
}

// Object is a data object with its replicas in replica-number order.
type Object struct {
	Path     string
	Name     string
	Owner    string
	Replicas []Replica
}

func statusCode(s replica.Status) int {
	code, ok := s.Code()
	if !ok {
		panic(fmt.Sprintf("replica status %s has no catalog code", s))
	}
	return code
}

var (
	goodCode  = statusCode(replica.Good)
	staleCode = statusCode(replica.Stale)
)

func objectID(ctx context.Context, q querier, p string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT d.id FROM data_objects d
		JOIN collections c ON d.coll_id = c.id
		WHERE c.path = ? AND d.name = ?
	`, path.Dir(p), path.Base(p)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, newError(CodeNoRows, p, "data object does not exist")
	}
	if err != nil {
		return 0, fmt.Errorf("look up %s: %w", p, err)
	}
	return id, nil
}

// Put registers a new data object with one good replica on resource. An
// existing object is an error unless force is set, in which case the
// replica on resource becomes good and every other replica stale.
func (c *Catalog) Put(ctx context.Context, p, resource, owner string, size int64, force bool) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if resource == "" {
		return newError(CodeInvalidInput, p, "no destination resource")
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		kind, err := stat(ctx, tx, p)
		if err != nil {
			return err
		}
		switch kind {
		case KindCollection:
			return newError(CodeAlreadyExists, p, "a collection exists at this path")
		case KindObject:
			if !force {
				return newError(CodeOverwrite, p, "data object exists; overwrite needs force")
			}
			id, err := objectID(ctx, tx, p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE replicas SET status = ?, modified = ? WHERE data_id = ? AND resc_hier != ?`,
				staleCode, c.timestamp(), id, resource,
			); err != nil {
				return fmt.Errorf("put %s: %w", p, err)
			}
			return c.upsertGood(ctx, tx, id, resource, size)
		}

		collID, err := collectionID(ctx, tx, path.Dir(p))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO data_objects (coll_id, name, owner) VALUES (?, ?, ?)`,
			collID, path.Base(p), owner,
		)
		if err != nil {
			return fmt.Errorf("put %s: %w", p, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("put %s: %w", p, err)
		}
		return c.upsertGood(ctx, tx, id, resource, size)
	})
}

func (c *Catalog) upsertGood(ctx context.Context, tx *sql.Tx, id int64, resource string, size int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE replicas SET status = ?, size = ?, modified = ? WHERE data_id = ? AND resc_hier = ?`,
		goodCode, size, c.timestamp(), id, resource,
	)
	if err != nil {
		return fmt.Errorf("update replica on %s: %w", resource, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO replicas (data_id, repl_num, resc_hier, status, size, modified)
		VALUES (?, (SELECT COALESCE(MAX(repl_num) + 1, 0) FROM replicas WHERE data_id = ?), ?, ?, ?, ?)
	`, id, id, resource, goodCode, size, c.timestamp()); err != nil {
		return fmt.Errorf("create replica on %s: %w", resource, err)
	}
	return nil
}

// Replicate makes the replica on dest good, copying from source or, when
// source is empty, from the lowest-numbered good replica. Without a good
// source the call fails with SYS_NO_GOOD_REPLICA. A good replica already on
// dest is left alone.
func (c *Catalog) Replicate(ctx context.Context, p, dest, source string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if dest == "" {
		return newError(CodeInvalidInput, p, "no destination resource")
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		id, err := objectID(ctx, tx, p)
		if err != nil {
			return err
		}

		var size int64
		if source != "" {
			err = tx.QueryRowContext(ctx,
				`SELECT size FROM replicas WHERE data_id = ? AND resc_hier = ? AND status = ?`,
				id, source, goodCode,
			).Scan(&size)
		} else {
			err = tx.QueryRowContext(ctx,
				`SELECT size FROM replicas WHERE data_id = ? AND status = ? ORDER BY repl_num LIMIT 1`,
				id, goodCode,
			).Scan(&size)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return newError(CodeNoGoodReplica, p, "no good replica to replicate from")
		}
		if err != nil {
			return fmt.Errorf("replicate %s: %w", p, err)
		}

		var status int
		err = tx.QueryRowContext(ctx,
			`SELECT status FROM replicas WHERE data_id = ? AND resc_hier = ?`, id, dest,
		).Scan(&status)
		switch {
		case err == nil && status == goodCode:
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("replicate %s: %w", p, err)
		}
		return c.upsertGood(ctx, tx, id, dest, size)
	})
}

// Move moves the replica on source to dest, keeping its status.
func (c *Catalog) Move(ctx context.Context, p, source, dest string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if source == "" || dest == "" {
		return newError(CodeInvalidInput, p, "move needs a source and a destination resource")
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		id, err := objectID(ctx, tx, p)
		if err != nil {
			return err
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM replicas WHERE data_id = ? AND resc_hier = ?`, id, dest,
		).Scan(&n); err != nil {
			return fmt.Errorf("move %s: %w", p, err)
		}
		if n > 0 {
			return newError(CodeCopyInResource, p, "a replica already exists on %s", dest)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE replicas SET resc_hier = ?, modified = ? WHERE data_id = ? AND resc_hier = ?`,
			dest, c.timestamp(), id, source,
		)
		if err != nil {
			return fmt.Errorf("move %s: %w", p, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return newError(CodeReplicaMissing, p, "no replica on %s", source)
		}
		return nil
	})
}

// Trim removes the replica on resource unless fewer than keep replicas
// would remain. It returns the number of replicas removed.
func (c *Catalog) Trim(ctx context.Context, p, resource string, keep int) (int, error) {
	p, err := cleanPath(p)
	if err != nil {
		return 0, err
	}
	if resource == "" {
		return 0, newError(CodeInvalidInput, p, "no resource to trim")
	}
	if keep < 1 {
		keep = 1
	}

	trimmed := 0
	err = c.inTx(ctx, func(tx *sql.Tx) error {
		id, err := objectID(ctx, tx, p)
		if err != nil {
			return err
		}
		var total int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM replicas WHERE data_id = ?`, id,
		).Scan(&total); err != nil {
			return fmt.Errorf("trim %s: %w", p, err)
		}
		if total-1 < keep {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM replicas WHERE data_id = ? AND resc_hier = ?`, id, resource,
		)
		if err != nil {
			return fmt.Errorf("trim %s: %w", p, err)
		}
		n, _ := res.RowsAffected()
		trimmed = int(n)
		return nil
	})
	return trimmed, err
}

// SetStatus forces the status code of the replica on resource.
func (c *Catalog) SetStatus(ctx context.Context, p, resource string, code int) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if code < 0 || code > maxStatus {
		return newError(CodeInvalidInput, p, "invalid replica status %d", code)
	}

	return c.inTx(ctx, func(tx *sql.Tx) error {
		id, err := objectID(ctx, tx, p)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE replicas SET status = ?, modified = ? WHERE data_id = ? AND resc_hier = ?`,
			code, c.timestamp(), id, resource,
		)
		if err != nil {
			return fmt.Errorf("set status %s: %w", p, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return newError(CodeReplicaMissing, p, "no replica on %s", resource)
		}
		return nil
	})
}

// Object returns the data object at p with its replicas.
func (c *Catalog) Object(ctx context.Context, p string) (*Object, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	id, err := objectID(ctx, c.db, p)
	if err != nil {
		return nil, err
	}

	obj := &Object{Path: p, Name: path.Base(p)}
	if err := c.db.QueryRowContext(ctx, `SELECT owner FROM data_objects WHERE id = ?`, id).Scan(&obj.Owner); err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT repl_num, resc_hier, status, size, modified
		FROM replicas WHERE data_id = ?
		ORDER BY repl_num
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read replicas of %s: %w", p, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Replica
		var modified string
		if err := rows.Scan(&r.Number, &r.Hierarchy, &r.Status, &r.Size, &modified); err != nil {
			return nil, fmt.Errorf("read replicas of %s: %w", p, err)
		}
		if r.Modified, err = time.Parse(time.RFC3339, modified); err != nil {
			return nil, fmt.Errorf("read replicas of %s: bad timestamp %q: %w", p, modified, err)
		}
		obj.Replicas = append(obj.Replicas, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read replicas of %s: %w", p, err)
	}
	return obj, nil
}
