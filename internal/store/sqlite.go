package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Points are kept as
// EWKB blobs and timestamps as fixed-width UTC text so range filters compare
// correctly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS airquality_projects (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	status          TEXT NOT NULL DEFAULT 'active',
	creator_id      INTEGER NOT NULL,
	host_project_id INTEGER NOT NULL,
	created         TEXT NOT NULL,
	modified        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS airquality_categories (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	type             TEXT NOT NULL,
	host_category_id INTEGER NOT NULL,
	project_id       INTEGER NOT NULL REFERENCES airquality_projects(id),
	UNIQUE (project_id, type)
);

CREATE TABLE IF NOT EXISTS airquality_fields (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	type           TEXT NOT NULL,
	host_field_id  INTEGER NOT NULL,
	host_field_key TEXT NOT NULL DEFAULT '',
	category_id    INTEGER NOT NULL REFERENCES airquality_categories(id),
	UNIQUE (category_id, type)
);

CREATE TABLE IF NOT EXISTS airquality_locations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	geometry   BLOB NOT NULL,
	creator_id INTEGER NOT NULL,
	created    TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS airquality_measurements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES airquality_locations(id),
	barcode     TEXT NOT NULL,
	creator_id  INTEGER NOT NULL,
	started     TEXT NOT NULL,
	finished    TEXT,
	properties  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_aq_projects_host ON airquality_projects(host_project_id);
CREATE INDEX IF NOT EXISTS idx_aq_categories_host ON airquality_categories(host_category_id);
CREATE INDEX IF NOT EXISTS idx_aq_fields_host ON airquality_fields(host_field_id);
CREATE INDEX IF NOT EXISTS idx_aq_locations_creator ON airquality_locations(creator_id);
CREATE INDEX IF NOT EXISTS idx_aq_measurements_location ON airquality_measurements(location_id);
CREATE INDEX IF NOT EXISTS idx_aq_measurements_started ON airquality_measurements(started);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTimeLayout is fixed width so lexical order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// --- Projects ---

const sqliteProjectColumns = `id, status, creator_id, host_project_id, created, modified`

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = model.ProjectStatusActive
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO airquality_projects (status, creator_id, host_project_id, created, modified) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			string(p.Status), p.CreatorID, p.HostProjectID, formatTime(now), formatTime(now),
		).Scan(&p.ID)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert project")
		}
		p.Created, p.Modified = now, now
		return sqliteSaveCategories(ctx, tx, p)
	})
}

func (s *SQLiteStore) SaveProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE airquality_projects SET status = ?, host_project_id = ?, modified = ? WHERE id = ?`,
			string(p.Status), p.HostProjectID, formatTime(now), p.ID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update project %d", p.ID)
		}
		if err := checkRowsAffected(res, "project", p.ID); err != nil {
			return err
		}
		p.Modified = now
		return sqliteSaveCategories(ctx, tx, p)
	})
}

func sqliteSaveCategories(ctx context.Context, tx *sql.Tx, p *model.Project) error {
	for i := range p.Categories {
		c := &p.Categories[i]
		c.ProjectID = p.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO airquality_categories (type, host_category_id, project_id) VALUES (?, ?, ?)
			 ON CONFLICT (project_id, type) DO UPDATE SET host_category_id = excluded.host_category_id
			 RETURNING id`,
			string(c.Type), c.HostCategoryID, p.ID,
		).Scan(&c.ID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert category %s", c.Type)
		}

		for j := range c.Fields {
			f := &c.Fields[j]
			f.CategoryID = c.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO airquality_fields (type, host_field_id, host_field_key, category_id) VALUES (?, ?, ?, ?)
				 ON CONFLICT (category_id, type) DO UPDATE SET host_field_id = excluded.host_field_id, host_field_key = excluded.host_field_key
				 RETURNING id`,
				string(f.Type), f.HostFieldID, f.HostFieldKey, c.ID,
			).Scan(&f.ID)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert field %s", f.Type)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProjectColumns+` FROM airquality_projects WHERE id = ?`, id)
	p, err := scanSQLiteProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: project %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get project %d", id)
	}

	projects := []model.Project{*p}
	if err := s.loadTree(ctx, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT ` + sqliteProjectColumns + ` FROM airquality_projects WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.HostProjectID != 0 {
		query += ` AND host_project_id = ?`
		args = append(args, filter.HostProjectID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan project")
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects iterate")
	}
	rows.Close()

	if err := s.loadTree(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *SQLiteStore) loadTree(ctx context.Context, projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int64, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	in, args := inClause(ids)

	cats, err := s.queryCategories(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE project_id IN `+in+` ORDER BY type`, args...)
	if err != nil {
		return err
	}
	fields, err := s.queryFields(ctx,
		`SELECT f.id, f.type, f.host_field_id, f.host_field_key, f.category_id
		 FROM airquality_fields f JOIN airquality_categories c ON c.id = f.category_id
		 WHERE c.project_id IN `+in, args...)
	if err != nil {
		return err
	}
	attachCategories(projects, cats, fields)
	return nil
}

func (s *SQLiteStore) SetProjectStatus(ctx context.Context, id int64, status model.ProjectStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE airquality_projects SET status = ?, modified = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project status %d", id)
	}
	return checkRowsAffected(res, "project", id)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM airquality_fields WHERE category_id IN (SELECT id FROM airquality_categories WHERE project_id = ?)`,
			`DELETE FROM airquality_categories WHERE project_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return eris.Wrapf(err, "sqlite: delete project %d tree", id)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM airquality_projects WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete project %d", id)
		}
		return checkRowsAffected(res, "project", id)
	})
}

// --- Categories and fields ---

func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	cats, err := s.queryCategories(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: category %d", id)
	}
	return &cats[0], nil
}

func (s *SQLiteStore) ListCategoriesByHost(ctx context.Context, hostCategoryID int64) ([]model.Category, error) {
	return s.queryCategories(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE host_category_id = ? ORDER BY id`,
		hostCategoryID)
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM airquality_fields WHERE category_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete category %d fields", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM airquality_categories WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete category %d", id)
		}
		return checkRowsAffected(res, "category", id)
	})
}

func (s *SQLiteStore) ListFieldsByHost(ctx context.Context, hostFieldID int64) ([]model.Field, error) {
	return s.queryFields(ctx,
		`SELECT id, type, host_field_id, host_field_key, category_id FROM airquality_fields WHERE host_field_id = ? ORDER BY id`,
		hostFieldID)
}

func (s *SQLiteStore) DeleteField(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM airquality_fields WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete field %d", id)
	}
	return checkRowsAffected(res, "field", id)
}

func (s *SQLiteStore) queryCategories(ctx context.Context, query string, args ...any) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query categories")
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var typ string
		if err := rows.Scan(&c.ID, &typ, &c.HostCategoryID, &c.ProjectID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		c.Type = model.CategoryType(typ)
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "sqlite: query categories iterate")
}

func (s *SQLiteStore) queryFields(ctx context.Context, query string, args ...any) ([]model.Field, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query fields")
	}
	defer rows.Close()

	var fields []model.Field
	for rows.Next() {
		var f model.Field
		var typ string
		if err := rows.Scan(&f.ID, &typ, &f.HostFieldID, &f.HostFieldKey, &f.CategoryID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		f.Type = model.FieldType(typ)
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "sqlite: query fields iterate")
}

// --- Locations ---

const sqliteLocationColumns = `id, name, geometry, creator_id, created, properties`

func (s *SQLiteStore) CreateLocation(ctx context.Context, l *model.Location) error {
	geomData, err := geometry.MarshalEWKB(l.Geometry)
	if err != nil {
		return err
	}
	props, err := marshalProperties(l.Properties)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO airquality_locations (name, geometry, creator_id, created, properties) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		l.Name, geomData, l.CreatorID, formatTime(l.Created), string(props),
	).Scan(&l.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert location")
	}
	if l.Measurements == nil {
		l.Measurements = []model.Measurement{}
	}
	return nil
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLocationColumns+` FROM airquality_locations WHERE id = ?`, id)
	l, err := scanSQLiteLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: location %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get location %d", id)
	}

	locs := []model.Location{*l}
	if err := attachMeasurements(ctx, s, locs); err != nil {
		return nil, err
	}
	return &locs[0], nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context, filter LocationFilter) ([]model.Location, error) {
	query := `SELECT ` + sqliteLocationColumns + ` FROM airquality_locations WHERE 1=1`
	args := []any{}
	if filter.CreatorID != 0 {
		query += ` AND creator_id = ?`
		args = append(args, filter.CreatorID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	defer rows.Close()

	locs := []model.Location{}
	for rows.Next() {
		l, err := scanSQLiteLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		locs = append(locs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations iterate")
	}
	rows.Close()

	if err := attachMeasurements(ctx, s, locs); err != nil {
		return nil, err
	}
	return locs, nil
}

func (s *SQLiteStore) UpdateLocation(ctx context.Context, l *model.Location) error {
	geomData, err := geometry.MarshalEWKB(l.Geometry)
	if err != nil {
		return err
	}
	props, err := marshalProperties(l.Properties)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE airquality_locations SET name = ?, geometry = ?, properties = ? WHERE id = ?`,
		l.Name, geomData, string(props), l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update location %d", l.ID)
	}
	return checkRowsAffected(res, "location", l.ID)
}

func (s *SQLiteStore) DeleteLocation(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM airquality_measurements WHERE location_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete location %d measurements", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM airquality_locations WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete location %d", id)
		}
		return checkRowsAffected(res, "location", id)
	})
}

func (s *SQLiteStore) CountLocations(ctx context.Context) (int, error) {
	return s.count(ctx, "airquality_locations")
}

// --- Measurements ---

const sqliteMeasurementColumns = `id, location_id, barcode, creator_id, started, finished, properties`

func (s *SQLiteStore) CreateMeasurement(ctx context.Context, m *model.Measurement) error {
	props, err := marshalProperties(m.Properties)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO airquality_measurements (location_id, barcode, creator_id, started, finished, properties)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		m.LocationID, m.Barcode, m.CreatorID, formatTime(m.Started), nullTime(m.Finished), string(props),
	).Scan(&m.ID)
	return eris.Wrap(err, "sqlite: insert measurement")
}

func (s *SQLiteStore) GetMeasurement(ctx context.Context, id int64) (*model.Measurement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteMeasurementColumns+` FROM airquality_measurements WHERE id = ?`, id)
	m, err := scanSQLiteMeasurement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: measurement %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get measurement %d", id)
	}
	return m, nil
}

func (s *SQLiteStore) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, error) {
	query := `SELECT ` + sqliteMeasurementColumns + ` FROM airquality_measurements WHERE 1=1`
	args := []any{}

	if filter.CreatorID != 0 {
		query += ` AND creator_id = ?`
		args = append(args, filter.CreatorID)
	}
	if filter.LocationIDs != nil {
		if len(filter.LocationIDs) == 0 {
			return []model.Measurement{}, nil
		}
		in, inArgs := inClause(filter.LocationIDs)
		query += ` AND location_id IN ` + in
		args = append(args, inArgs...)
	}
	if filter.Finished != nil {
		if *filter.Finished {
			query += ` AND finished IS NOT NULL`
		} else {
			query += ` AND finished IS NULL`
		}
	}
	if filter.StartedFrom != nil {
		query += ` AND started >= ?`
		args = append(args, formatTime(*filter.StartedFrom))
	}
	if filter.StartedBefore != nil {
		query += ` AND started < ?`
		args = append(args, formatTime(*filter.StartedBefore))
	}
	query += ` ORDER BY started, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list measurements")
	}
	defer rows.Close()

	ms := []model.Measurement{}
	for rows.Next() {
		m, err := scanSQLiteMeasurement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan measurement")
		}
		ms = append(ms, *m)
	}
	return ms, eris.Wrap(rows.Err(), "sqlite: list measurements iterate")
}

func (s *SQLiteStore) UpdateMeasurement(ctx context.Context, m *model.Measurement) error {
	props, err := marshalProperties(m.Properties)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE airquality_measurements SET barcode = ?, finished = ?, properties = ? WHERE id = ?`,
		m.Barcode, nullTime(m.Finished), string(props), m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update measurement %d", m.ID)
	}
	return checkRowsAffected(res, "measurement", m.ID)
}

func (s *SQLiteStore) DeleteMeasurement(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM airquality_measurements WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete measurement %d", id)
	}
	return checkRowsAffected(res, "measurement", id)
}

func (s *SQLiteStore) CountMeasurements(ctx context.Context) (int, error) {
	return s.count(ctx, "airquality_measurements")
}

// --- Helpers ---

func (s *SQLiteStore) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %d", entity, id)
	}
	return nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(row scannable) (*model.Project, error) {
	var p model.Project
	var status, created, modified string
	if err := row.Scan(&p.ID, &status, &p.CreatorID, &p.HostProjectID, &created, &modified); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	var err error
	if p.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.Modified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSQLiteLocation(row scannable) (*model.Location, error) {
	var l model.Location
	var geomData []byte
	var created, props string
	if err := row.Scan(&l.ID, &l.Name, &geomData, &l.CreatorID, &created, &props); err != nil {
		return nil, err
	}
	var err error
	if l.Geometry, err = geometry.UnmarshalEWKB(geomData); err != nil {
		return nil, err
	}
	if l.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	if l.Properties, err = unmarshalProperties([]byte(props)); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanSQLiteMeasurement(row scannable) (*model.Measurement, error) {
	var m model.Measurement
	var started, props string
	var finished sql.NullString
	if err := row.Scan(&m.ID, &m.LocationID, &m.Barcode, &m.CreatorID, &started, &finished, &props); err != nil {
		return nil, err
	}
	var err error
	if m.Started, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		m.Finished = &t
	}
	if m.Properties, err = unmarshalProperties([]byte(props)); err != nil {
		return nil, err
	}
	return &m, nil
}
