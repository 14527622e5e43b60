package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mappingforchange/geokey-airquality/internal/db"
	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// PostgresStore implements Store using pgxpool and PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS airquality_projects (
	id              BIGSERIAL PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'active',
	creator_id      BIGINT NOT NULL,
	host_project_id BIGINT NOT NULL,
	created         TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS airquality_categories (
	id               BIGSERIAL PRIMARY KEY,
	type             TEXT NOT NULL,
	host_category_id BIGINT NOT NULL,
	project_id       BIGINT NOT NULL REFERENCES airquality_projects(id) ON DELETE CASCADE,
	UNIQUE (project_id, type)
);

CREATE TABLE IF NOT EXISTS airquality_fields (
	id             BIGSERIAL PRIMARY KEY,
	type           TEXT NOT NULL,
	host_field_id  BIGINT NOT NULL,
	host_field_key TEXT NOT NULL DEFAULT '',
	category_id    BIGINT NOT NULL REFERENCES airquality_categories(id) ON DELETE CASCADE,
	UNIQUE (category_id, type)
);

CREATE TABLE IF NOT EXISTS airquality_locations (
	id         BIGSERIAL PRIMARY KEY,
	name       VARCHAR(100) NOT NULL,
	geometry   geography(Point, 4326) NOT NULL,
	creator_id BIGINT NOT NULL,
	created    TIMESTAMPTZ NOT NULL DEFAULT now(),
	properties JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS airquality_measurements (
	id          BIGSERIAL PRIMARY KEY,
	location_id BIGINT NOT NULL REFERENCES airquality_locations(id) ON DELETE CASCADE,
	barcode     VARCHAR(25) NOT NULL,
	creator_id  BIGINT NOT NULL,
	started     TIMESTAMPTZ NOT NULL,
	finished    TIMESTAMPTZ,
	properties  JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_aq_projects_host ON airquality_projects(host_project_id);
CREATE INDEX IF NOT EXISTS idx_aq_categories_host ON airquality_categories(host_category_id);
CREATE INDEX IF NOT EXISTS idx_aq_fields_host ON airquality_fields(host_field_id);
CREATE INDEX IF NOT EXISTS idx_aq_locations_creator ON airquality_locations(creator_id);
CREATE INDEX IF NOT EXISTS idx_aq_measurements_location ON airquality_measurements(location_id);
CREATE INDEX IF NOT EXISTS idx_aq_measurements_started ON airquality_measurements(started) WHERE finished IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Projects ---

const pgProjectColumns = `id, status, creator_id, host_project_id, created, modified`

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = model.ProjectStatusActive
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO airquality_projects (status, creator_id, host_project_id, created, modified) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			string(p.Status), p.CreatorID, p.HostProjectID, now, now,
		).Scan(&p.ID)
		if err != nil {
			return eris.Wrap(err, "postgres: insert project")
		}
		p.Created, p.Modified = now, now
		return pgSaveCategories(ctx, tx, p)
	})
}

func (s *PostgresStore) SaveProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE airquality_projects SET status = $1, host_project_id = $2, modified = $3 WHERE id = $4`,
			string(p.Status), p.HostProjectID, now, p.ID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update project %d", p.ID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "postgres: project %d", p.ID)
		}
		p.Modified = now
		return pgSaveCategories(ctx, tx, p)
	})
}

// pgSaveCategories upserts the project's categories and fields by type.
func pgSaveCategories(ctx context.Context, q db.Querier, p *model.Project) error {
	for i := range p.Categories {
		c := &p.Categories[i]
		c.ProjectID = p.ID
		err := q.QueryRow(ctx,
			`INSERT INTO airquality_categories (type, host_category_id, project_id) VALUES ($1, $2, $3)
			 ON CONFLICT (project_id, type) DO UPDATE SET host_category_id = EXCLUDED.host_category_id
			 RETURNING id`,
			string(c.Type), c.HostCategoryID, p.ID,
		).Scan(&c.ID)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert category %s", c.Type)
		}

		for j := range c.Fields {
			f := &c.Fields[j]
			f.CategoryID = c.ID
			err := q.QueryRow(ctx,
				`INSERT INTO airquality_fields (type, host_field_id, host_field_key, category_id) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (category_id, type) DO UPDATE SET host_field_id = EXCLUDED.host_field_id, host_field_key = EXCLUDED.host_field_key
				 RETURNING id`,
				string(f.Type), f.HostFieldID, f.HostFieldKey, c.ID,
			).Scan(&f.ID)
			if err != nil {
				return eris.Wrapf(err, "postgres: upsert field %s", f.Type)
			}
		}
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProjectColumns+` FROM airquality_projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: project %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get project %d", id)
	}

	projects := []model.Project{*p}
	if err := s.loadTree(ctx, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT ` + pgProjectColumns + ` FROM airquality_projects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.HostProjectID != 0 {
		query += fmt.Sprintf(` AND host_project_id = $%d`, argIdx)
		args = append(args, filter.HostProjectID)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list projects iterate")
	}
	rows.Close()

	if err := s.loadTree(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *PostgresStore) loadTree(ctx context.Context, projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int64, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	cats, err := s.queryCategories(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE project_id = ANY($1) ORDER BY type`, ids)
	if err != nil {
		return err
	}
	fields, err := s.queryFields(ctx,
		`SELECT f.id, f.type, f.host_field_id, f.host_field_key, f.category_id
		 FROM airquality_fields f JOIN airquality_categories c ON c.id = f.category_id
		 WHERE c.project_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	attachCategories(projects, cats, fields)
	return nil
}

func (s *PostgresStore) SetProjectStatus(ctx context.Context, id int64, status model.ProjectStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE airquality_projects SET status = $1, modified = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project status %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: project %d", id)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "airquality_projects", "project", id)
}

// --- Categories and fields ---

func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	var typ string
	err := s.pool.QueryRow(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE id = $1`, id,
	).Scan(&c.ID, &typ, &c.HostCategoryID, &c.ProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: category %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get category %d", id)
	}
	c.Type = model.CategoryType(typ)
	return &c, nil
}

func (s *PostgresStore) ListCategoriesByHost(ctx context.Context, hostCategoryID int64) ([]model.Category, error) {
	return s.queryCategories(ctx,
		`SELECT id, type, host_category_id, project_id FROM airquality_categories WHERE host_category_id = $1 ORDER BY id`,
		hostCategoryID)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "airquality_categories", "category", id)
}

func (s *PostgresStore) ListFieldsByHost(ctx context.Context, hostFieldID int64) ([]model.Field, error) {
	return s.queryFields(ctx,
		`SELECT id, type, host_field_id, host_field_key, category_id FROM airquality_fields WHERE host_field_id = $1 ORDER BY id`,
		hostFieldID)
}

func (s *PostgresStore) DeleteField(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "airquality_fields", "field", id)
}

func (s *PostgresStore) queryCategories(ctx context.Context, query string, args ...any) ([]model.Category, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query categories")
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var typ string
		if err := rows.Scan(&c.ID, &typ, &c.HostCategoryID, &c.ProjectID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		c.Type = model.CategoryType(typ)
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "postgres: query categories iterate")
}

func (s *PostgresStore) queryFields(ctx context.Context, query string, args ...any) ([]model.Field, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query fields")
	}
	defer rows.Close()

	var fields []model.Field
	for rows.Next() {
		var f model.Field
		var typ string
		if err := rows.Scan(&f.ID, &typ, &f.HostFieldID, &f.HostFieldKey, &f.CategoryID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		f.Type = model.FieldType(typ)
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "postgres: query fields iterate")
}

// --- Locations ---

const pgLocationColumns = `id, name, ST_AsEWKB(geometry::geometry), creator_id, created, properties`

func (s *PostgresStore) CreateLocation(ctx context.Context, l *model.Location) error {
	geomData, err := geometry.MarshalEWKB(l.Geometry)
	if err != nil {
		return err
	}
	props, err := marshalProperties(l.Properties)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO airquality_locations (name, geometry, creator_id, created, properties)
		 VALUES ($1, ST_GeomFromEWKB($2)::geography, $3, $4, $5) RETURNING id`,
		l.Name, geomData, l.CreatorID, l.Created.UTC(), props,
	).Scan(&l.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert location")
	}
	if l.Measurements == nil {
		l.Measurements = []model.Measurement{}
	}
	return nil
}

func (s *PostgresStore) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgLocationColumns+` FROM airquality_locations WHERE id = $1`, id)
	l, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: location %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get location %d", id)
	}

	locs := []model.Location{*l}
	if err := attachMeasurements(ctx, s, locs); err != nil {
		return nil, err
	}
	return &locs[0], nil
}

func (s *PostgresStore) ListLocations(ctx context.Context, filter LocationFilter) ([]model.Location, error) {
	query := `SELECT ` + pgLocationColumns + ` FROM airquality_locations WHERE true`
	args := []any{}
	if filter.CreatorID != 0 {
		query += ` AND creator_id = $1`
		args = append(args, filter.CreatorID)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	locs := []model.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locs = append(locs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list locations iterate")
	}
	rows.Close()

	if err := attachMeasurements(ctx, s, locs); err != nil {
		return nil, err
	}
	return locs, nil
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, l *model.Location) error {
	geomData, err := geometry.MarshalEWKB(l.Geometry)
	if err != nil {
		return err
	}
	props, err := marshalProperties(l.Properties)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE airquality_locations SET name = $1, geometry = ST_GeomFromEWKB($2)::geography, properties = $3 WHERE id = $4`,
		l.Name, geomData, props, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update location %d", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: location %d", l.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteLocation(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "airquality_locations", "location", id)
}

func (s *PostgresStore) CountLocations(ctx context.Context) (int, error) {
	return s.count(ctx, "airquality_locations")
}

// --- Measurements ---

const pgMeasurementColumns = `id, location_id, barcode, creator_id, started, finished, properties`

func (s *PostgresStore) CreateMeasurement(ctx context.Context, m *model.Measurement) error {
	props, err := marshalProperties(m.Properties)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO airquality_measurements (location_id, barcode, creator_id, started, finished, properties)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		m.LocationID, m.Barcode, m.CreatorID, m.Started.UTC(), utcPtr(m.Finished), props,
	).Scan(&m.ID)
	return eris.Wrap(err, "postgres: insert measurement")
}

func (s *PostgresStore) GetMeasurement(ctx context.Context, id int64) (*model.Measurement, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgMeasurementColumns+` FROM airquality_measurements WHERE id = $1`, id)
	m, err := scanMeasurement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: measurement %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get measurement %d", id)
	}
	return m, nil
}

func (s *PostgresStore) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, error) {
	query := `SELECT ` + pgMeasurementColumns + ` FROM airquality_measurements WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CreatorID != 0 {
		query += fmt.Sprintf(` AND creator_id = $%d`, argIdx)
		args = append(args, filter.CreatorID)
		argIdx++
	}
	if filter.LocationIDs != nil {
		query += fmt.Sprintf(` AND location_id = ANY($%d)`, argIdx)
		args = append(args, filter.LocationIDs)
		argIdx++
	}
	if filter.Finished != nil {
		if *filter.Finished {
			query += ` AND finished IS NOT NULL`
		} else {
			query += ` AND finished IS NULL`
		}
	}
	if filter.StartedFrom != nil {
		query += fmt.Sprintf(` AND started >= $%d`, argIdx)
		args = append(args, filter.StartedFrom.UTC())
		argIdx++
	}
	if filter.StartedBefore != nil {
		query += fmt.Sprintf(` AND started < $%d`, argIdx)
		args = append(args, filter.StartedBefore.UTC())
	}
	query += ` ORDER BY started, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list measurements")
	}
	defer rows.Close()

	ms := []model.Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan measurement")
		}
		ms = append(ms, *m)
	}
	return ms, eris.Wrap(rows.Err(), "postgres: list measurements iterate")
}

func (s *PostgresStore) UpdateMeasurement(ctx context.Context, m *model.Measurement) error {
	props, err := marshalProperties(m.Properties)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE airquality_measurements SET barcode = $1, finished = $2, properties = $3 WHERE id = $4`,
		m.Barcode, utcPtr(m.Finished), props, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update measurement %d", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: measurement %d", m.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteMeasurement(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "airquality_measurements", "measurement", id)
}

func (s *PostgresStore) CountMeasurements(ctx context.Context) (int, error) {
	return s.count(ctx, "airquality_measurements")
}

// --- Helpers ---

func (s *PostgresStore) deleteByID(ctx context.Context, table, entity string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+pgx.Identifier{table}.Sanitize()+` WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete %s %d", entity, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s %d", entity, id)
	}
	return nil
}

func (s *PostgresStore) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+pgx.Identifier{table}.Sanitize()).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", table)
	}
	return n, nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var status string
	if err := row.Scan(&p.ID, &status, &p.CreatorID, &p.HostProjectID, &p.Created, &p.Modified); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	return &p, nil
}

func scanLocation(row pgx.Row) (*model.Location, error) {
	var l model.Location
	var geomData, props []byte
	if err := row.Scan(&l.ID, &l.Name, &geomData, &l.CreatorID, &l.Created, &props); err != nil {
		return nil, err
	}
	pt, err := geometry.UnmarshalEWKB(geomData)
	if err != nil {
		return nil, err
	}
	l.Geometry = pt
	if l.Properties, err = unmarshalProperties(props); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanMeasurement(row pgx.Row) (*model.Measurement, error) {
	var m model.Measurement
	var props []byte
	if err := row.Scan(&m.ID, &m.LocationID, &m.Barcode, &m.CreatorID, &m.Started, &m.Finished, &props); err != nil {
		return nil, err
	}
	var err error
	if m.Properties, err = unmarshalProperties(props); err != nil {
		return nil, err
	}
	return &m, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
