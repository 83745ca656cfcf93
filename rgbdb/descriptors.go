package rgbdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
)

// insertTweak inserts a single tapret tweak of the descriptor with the given
// id.
func (s *SqliteStore) insertTweak(ctx context.Context, tx *sql.Tx,
	descrID int64, t rgbdescr.Terminal,
	commitment dbc.TapretCommitment) error {

	_, err := tx.ExecContext(ctx, `
		INSERT INTO tapret_tweaks (
			descriptor_id, keychain, idx, commitment, created_at
		) VALUES (?, ?, ?, ?, ?)`,
		descrID, int64(t.Keychain), int64(t.Index), commitment.Bytes(),
		s.clock.Now().UTC(),
	)
	if IsUniqueConstraintViolation(MapSQLError(err)) {
		return &rgbdescr.TweakAlreadyAssignedError{Terminal: t}
	}

	return err
}

// descriptorID looks up the id of the named descriptor.
func descriptorID(ctx context.Context, tx *sql.Tx, name string) (int64,
	error) {

	var id int64
	err := tx.QueryRowContext(
		ctx, `SELECT id FROM descriptors WHERE name = ?`, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %v", ErrDescriptorNotFound, name)
	}

	return id, err
}

// StoreDescriptor stores the descriptor under the given name together with
// all its tapret tweaks. A descriptor can only be stored once per name.
func (s *SqliteStore) StoreDescriptor(ctx context.Context, name string,
	descr *rgbdescr.RgbDescr) error {

	return s.ExecTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO descriptors (name, descriptor, created_at)
			VALUES (?, ?, ?)`,
			name, descr.String(), s.clock.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("unable to insert descriptor: %w",
				MapSQLError(err))
		}
		descrID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		tapretKey, ok := descr.TapretKey()
		if !ok {
			return nil
		}
		for _, tweak := range tapretKey.Tweaks() {
			err := s.insertTweak(
				ctx, tx, descrID, tweak.Terminal,
				tweak.Commitment,
			)
			if err != nil {
				return err
			}
		}

		log.Debugf("Stored descriptor %v with %d tweaks", name,
			len(tapretKey.Tweaks()))

		return nil
	})
}

// AddTapretTweak persists the tapret commitment of the terminal of the named
// descriptor. If the terminal already has a tweak, a
// *rgbdescr.TweakAlreadyAssignedError is returned and the stored tweak is
// left untouched.
func (s *SqliteStore) AddTapretTweak(ctx context.Context, name string,
	t rgbdescr.Terminal, commitment dbc.TapretCommitment) error {

	return s.ExecTx(ctx, func(tx *sql.Tx) error {
		descrID, err := descriptorID(ctx, tx, name)
		if err != nil {
			return err
		}

		return s.insertTweak(ctx, tx, descrID, t, commitment)
	})
}

// FetchDescriptor loads the named descriptor and replays all its tapret
// tweaks on it.
func (s *SqliteStore) FetchDescriptor(ctx context.Context,
	name string) (*rgbdescr.RgbDescr, error) {

	var descr *rgbdescr.RgbDescr
	err := s.ExecTx(ctx, func(tx *sql.Tx) error {
		var (
			descrID int64
			text    string
		)
		err := tx.QueryRowContext(ctx, `
			SELECT id, descriptor FROM descriptors
			WHERE name = ?`, name,
		).Scan(&descrID, &text)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %v", ErrDescriptorNotFound, name)
		}
		if err != nil {
			return err
		}

		descr, err = rgbdescr.ParseRgbDescr(text)
		if err != nil {
			return fmt.Errorf("unable to parse stored descriptor "+
				"%v: %w", name, err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT keychain, idx, commitment FROM tapret_tweaks
			WHERE descriptor_id = ?
			ORDER BY keychain, idx`, descrID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		var tweaks []rgbdescr.TapretTweak
		for rows.Next() {
			var (
				keychain, idx int64
				commitBytes   []byte
			)
			err := rows.Scan(&keychain, &idx, &commitBytes)
			if err != nil {
				return err
			}

			commitment, err := dbc.TapretCommitmentFromBytes(
				commitBytes,
			)
			if err != nil {
				return err
			}
			tweaks = append(tweaks, rgbdescr.TapretTweak{
				Terminal: rgbdescr.Terminal{
					Keychain: rgbdescr.Keychain(keychain),
					Index:    uint32(idx),
				},
				Commitment: commitment,
			})
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(tweaks) == 0 {
			return nil
		}
		if _, ok := descr.TapretKey(); !ok {
			return fmt.Errorf("descriptor %v has tapret tweaks but "+
				"no taproot key", name)
		}
		for _, tweak := range tweaks {
			err := descr.AddTapretTweak(
				tweak.Terminal, tweak.Commitment,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return descr, nil
}

// ListDescriptors returns the names of all stored descriptors in the order
// they were stored.
func (s *SqliteStore) ListDescriptors(ctx context.Context) ([]string, error) {
	var names []string
	err := s.ExecTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(
			ctx, `SELECT name FROM descriptors ORDER BY id`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}
