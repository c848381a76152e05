package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
)

// Content holds the columns every content table shares.
type Content struct {
	Name        string `gorm:"column:name;not null;index"`
	VideoFileID string `gorm:"column:video_file_id;not null"`
	Captions    string `gorm:"column:captions"`
	Genres      string `gorm:"column:genres;not null;default:'[]'"`
	ViewsCount  int64  `gorm:"column:views_count;not null;default:0"`
}

type FeatureFilm struct {
	Code int64 `gorm:"column:code;primaryKey;autoIncrement:false"`
	Content
}

func (FeatureFilm) TableName() string { return "feature_films" }

type SeriesEpisode struct {
	Code   int64 `gorm:"column:code;primaryKey;autoIncrement:false"`
	Season int   `gorm:"column:season;primaryKey;autoIncrement:false"`
	Series int   `gorm:"column:series;primaryKey;autoIncrement:false"`
	Content
}

func (SeriesEpisode) TableName() string { return "series" }

type MiniSeriesEpisode struct {
	Code   int64 `gorm:"column:code;primaryKey;autoIncrement:false"`
	Series int   `gorm:"column:series;primaryKey;autoIncrement:false"`
	Content
}

func (MiniSeriesEpisode) TableName() string { return "mini_series" }

type FavoriteRow struct {
	UserID    int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	MovieCode int64     `gorm:"column:movie_code;primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (FavoriteRow) TableName() string { return "favorites" }

// sqlRow is the scan target for any content table. Columns a table lacks stay
// zero.
type sqlRow struct {
	Code        int64  `gorm:"column:code"`
	Season      int    `gorm:"column:season"`
	Series      int    `gorm:"column:series"`
	Name        string `gorm:"column:name"`
	VideoFileID string `gorm:"column:video_file_id"`
	Captions    string `gorm:"column:captions"`
	Genres      string `gorm:"column:genres"`
	ViewsCount  int64  `gorm:"column:views_count"`
}

func (r sqlRow) record(shape catalog.Shape) catalog.Record {
	return catalog.Record{
		Shape:    shape,
		Code:     r.Code,
		Key:      catalog.NormalizeKey(shape, catalog.EpisodeKey{Season: r.Season, Episode: r.Series}),
		Title:    r.Name,
		MediaRef: r.VideoFileID,
		Caption:  r.Captions,
		Genres:   genre.Deserialize(r.Genres),
		Views:    r.ViewsCount,
	}
}

func content(rec catalog.Record) Content {
	return Content{
		Name:        rec.Title,
		VideoFileID: rec.MediaRef,
		Captions:    rec.Caption,
		Genres:      genre.Serialize(rec.Genres),
		ViewsCount:  rec.Views,
	}
}

type sqlShape struct {
	shape catalog.Shape
	table string
	order string
	first string
	model func(rec catalog.Record) any
	zero  func() any
}

var sqlShapes = map[catalog.Shape]sqlShape{
	catalog.Standalone: {
		shape: catalog.Standalone,
		table: "feature_films",
		order: "code",
		model: func(rec catalog.Record) any { return &FeatureFilm{Code: rec.Code, Content: content(rec)} },
		zero:  func() any { return &FeatureFilm{} },
	},
	catalog.Seasoned: {
		shape: catalog.Seasoned,
		table: "series",
		order: "code, season, series",
		first: "season = 1 AND series = 1",
		model: func(rec catalog.Record) any {
			return &SeriesEpisode{Code: rec.Code, Season: rec.Key.Season, Series: rec.Key.Episode, Content: content(rec)}
		},
		zero: func() any { return &SeriesEpisode{} },
	},
	catalog.Flat: {
		shape: catalog.Flat,
		table: "mini_series",
		order: "code, series",
		first: "series = 1",
		model: func(rec catalog.Record) any {
			return &MiniSeriesEpisode{Code: rec.Code, Series: rec.Key.Episode, Content: content(rec)}
		},
		zero: func() any { return &MiniSeriesEpisode{} },
	},
}

func (sh sqlShape) whereKey(tx *gorm.DB, code int64, key catalog.EpisodeKey) *gorm.DB {
	tx = tx.Where("code = ?", code)
	switch sh.shape {
	case catalog.Seasoned:
		return tx.Where("season = ? AND series = ?", key.Season, key.Episode)
	case catalog.Flat:
		return tx.Where("series = ?", key.Episode)
	default:
		return tx
	}
}

// SQL is a catalog.Store over gorm. PostgreSQL and SQLite are supported.
type SQL struct {
	db    *gorm.DB
	log   *logrus.Entry
	now   func() time.Time
	repos map[catalog.Shape]*sqlRepo
	favs  *sqlFavorites
}

var _ catalog.Store = (*SQL)(nil)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
}

// OpenSQLite opens (and migrates) a SQLite database. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string, log *logrus.Entry) (*SQL, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every sqlite connection to ":memory:" is its own database, and file
	// databases only take one writer anyway.
	sqlDB.SetMaxOpenConns(1)
	return NewSQL(db, log)
}

// OpenPostgres opens (and migrates) a PostgreSQL database.
func OpenPostgres(dsn string, log *logrus.Entry) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("POSTGRES_DSN is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewSQL(db, log)
}

// NewSQL wraps an open gorm handle and migrates the schema.
func NewSQL(db *gorm.DB, log *logrus.Entry) (*SQL, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := db.AutoMigrate(&FeatureFilm{}, &SeriesEpisode{}, &MiniSeriesEpisode{}, &FavoriteRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &SQL{db: db, log: log, now: time.Now}
	s.repos = make(map[catalog.Shape]*sqlRepo, len(sqlShapes))
	for shape, sh := range sqlShapes {
		s.repos[shape] = &sqlRepo{s: s, sh: sh}
	}
	s.favs = &sqlFavorites{s: s}
	log.WithField("dialect", db.Dialector.Name()).Info("catalog database ready")
	return s, nil
}

func (s *SQL) Repo(shape catalog.Shape) catalog.Repository {
	r, ok := s.repos[shape]
	if !ok {
		panic(fmt.Sprintf("storage: no repository for shape %s", shape))
	}
	return r
}

func (s *SQL) Favorites() catalog.Favorites { return s.favs }

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver errors onto the catalog taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, catalog.ErrDuplicateKey)
	}
	return catalog.Storage(op, err)
}

// owner returns the shape holding code, or ShapeNone.
func (s *SQL) owner(tx *gorm.DB, code int64) (catalog.Shape, error) {
	for _, shape := range catalog.Shapes {
		var n int64
		if err := tx.Table(sqlShapes[shape].table).Where("code = ?", code).Count(&n).Error; err != nil {
			return catalog.ShapeNone, err
		}
		if n > 0 {
			return shape, nil
		}
	}
	return catalog.ShapeNone, nil
}

func (s *SQL) Lookup(ctx context.Context, code int64) (*catalog.Item, error) {
	for _, shape := range catalog.Shapes {
		recs, err := s.repos[shape].Episodes(ctx, code)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return &catalog.Item{Shape: shape, Code: code, Records: recs}, nil
		}
	}
	return nil, nil
}

func (s *SQL) RenameCode(ctx context.Context, oldCode, newCode int64) error {
	if newCode < 1 {
		return catalog.Errorf(catalog.CodeValidation, "code must be a positive number")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shape, err := s.owner(tx, oldCode)
		if err != nil {
			return err
		}
		if shape == catalog.ShapeNone {
			return catalog.Errorf(catalog.CodeNotFound, "code %d not found", oldCode)
		}
		if oldCode == newCode {
			return nil
		}
		taken, err := s.owner(tx, newCode)
		if err != nil {
			return err
		}
		if taken != catalog.ShapeNone {
			return catalog.Errorf(catalog.CodeCodeConflict, "code %d is already used by a %s item", newCode, taken)
		}
		return tx.Table(sqlShapes[shape].table).Where("code = ?", oldCode).Update("code", newCode).Error
	})
	return translate("rename code", err)
}

func (s *SQL) MoveEpisodeToStandalone(ctx context.Context, shape catalog.Shape, code int64, key catalog.EpisodeKey, newCode int64) error {
	if !shape.Episodic() {
		return catalog.ErrUnsupported
	}
	sh := sqlShapes[shape]
	key = catalog.NormalizeKey(shape, key)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []sqlRow
		if err := sh.whereKey(tx.Table(sh.table), code, key).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return catalog.Errorf(catalog.CodeNotFound, "episode %s of %d not found", key, code)
		}
		src := rows[0]
		film := catalog.Record{
			Shape:    catalog.Standalone,
			Code:     newCode,
			Title:    src.Name,
			MediaRef: src.VideoFileID,
			Caption:  src.Captions,
		}
		if err := catalog.Validate(film); err != nil {
			return err
		}
		var n int64
		if err := tx.Table(sqlShapes[catalog.Standalone].table).Where("code = ?", newCode).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return catalog.Errorf(catalog.CodeDuplicateKey, "film %d already exists", newCode)
		}
		if err := tx.Create(sqlShapes[catalog.Standalone].model(film)).Error; err != nil {
			return err
		}
		return sh.whereKey(tx, code, key).Delete(sh.zero()).Error
	})
	return translate("move episode", err)
}

type favCount struct {
	MovieCode int64 `gorm:"column:movie_code"`
	Favs      int64 `gorm:"column:favs"`
}

func (s *SQL) Rankings(ctx context.Context, q catalog.RankQuery) ([]catalog.Ranking, error) {
	db := s.db.WithContext(ctx)

	favQuery := db.Table("favorites").Select("movie_code, COUNT(DISTINCT user_id) AS favs").Group("movie_code")
	if !q.Since.IsZero() {
		favQuery = favQuery.Where("created_at >= ?", q.Since.UTC())
	}
	var counts []favCount
	if err := favQuery.Scan(&counts).Error; err != nil {
		return nil, translate("count favorites", err)
	}
	favs := make(map[int64]int64, len(counts))
	for _, c := range counts {
		favs[c.MovieCode] = c.Favs
	}

	var out []catalog.Ranking
	for _, shape := range catalog.Shapes {
		sh := sqlShapes[shape]
		query := db.Table(sh.table).Order(sh.order)
		if len(q.Genres) > 0 {
			conds := make([]string, 0, len(q.Genres))
			args := make([]any, 0, len(q.Genres))
			for _, g := range q.Genres {
				conds = append(conds, "genres LIKE ?")
				args = append(args, "%"+genre.Pattern(g)+"%")
			}
			query = query.Where(strings.Join(conds, " OR "), args...)
		}
		var rows []sqlRow
		if err := query.Find(&rows).Error; err != nil {
			return nil, translate("rank "+shape.String(), err)
		}
		out = append(out, aggregate(shape, recordsOf(shape, rows), favs)...)
	}
	return out, nil
}

func recordsOf(shape catalog.Shape, rows []sqlRow) []catalog.Record {
	recs := make([]catalog.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record(shape))
	}
	return recs
}

type sqlRepo struct {
	s  *SQL
	sh sqlShape
}

func (r *sqlRepo) Shape() catalog.Shape { return r.sh.shape }

func (r *sqlRepo) Create(ctx context.Context, rec catalog.Record) error {
	rec.Shape = r.sh.shape
	rec.Views = 0
	if err := catalog.Validate(rec); err != nil {
		return err
	}
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := r.s.owner(tx, rec.Code)
		if err != nil {
			return err
		}
		if owner != catalog.ShapeNone && owner != r.sh.shape {
			return catalog.Errorf(catalog.CodeCodeConflict, "code %d is already used by a %s item", rec.Code, owner)
		}
		var n int64
		if err := r.sh.whereKey(tx.Table(r.sh.table), rec.Code, rec.Key).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return catalog.Errorf(catalog.CodeDuplicateKey, "%s %d %s already exists", r.sh.shape, rec.Code, rec.Key)
		}
		if r.sh.shape.Episodic() && owner == r.sh.shape {
			if len(rec.Genres) > 0 {
				if err := tx.Table(r.sh.table).Where("code = ?", rec.Code).
					Update("genres", genre.Serialize(rec.Genres)).Error; err != nil {
					return err
				}
			} else {
				var first []sqlRow
				if err := tx.Table(r.sh.table).Where("code = ?", rec.Code).Order(r.sh.order).Limit(1).Find(&first).Error; err != nil {
					return err
				}
				if len(first) > 0 {
					rec.Genres = genre.Deserialize(first[0].Genres)
				}
			}
		}
		return tx.Create(r.sh.model(rec)).Error
	})
	return translate("create "+r.sh.shape.String(), err)
}

func (r *sqlRepo) Episodes(ctx context.Context, code int64) ([]catalog.Record, error) {
	var rows []sqlRow
	err := r.s.db.WithContext(ctx).Table(r.sh.table).Where("code = ?", code).Order(r.sh.order).Find(&rows).Error
	if err != nil {
		return nil, translate("list "+r.sh.shape.String(), err)
	}
	return recordsOf(r.sh.shape, rows), nil
}

func (r *sqlRepo) Episode(ctx context.Context, code int64, key catalog.EpisodeKey) (*catalog.Record, error) {
	key = catalog.NormalizeKey(r.sh.shape, key)
	var rows []sqlRow
	err := r.sh.whereKey(r.s.db.WithContext(ctx).Table(r.sh.table), code, key).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, translate("get "+r.sh.shape.String(), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record(r.sh.shape)
	return &rec, nil
}

func contentUpdates(p catalog.Patch) map[string]any {
	upd := map[string]any{}
	if p.Title != nil {
		upd["name"] = *p.Title
	}
	if p.MediaRef != nil {
		upd["video_file_id"] = *p.MediaRef
	}
	if p.Caption != nil {
		upd["captions"] = *p.Caption
	}
	if p.Genres != nil {
		upd["genres"] = genre.Serialize(*p.Genres)
	}
	return upd
}

func (r *sqlRepo) UpdateGlobal(ctx context.Context, code int64, p catalog.Patch) error {
	if err := catalog.ValidatePatch(r.sh.shape, p, false); err != nil {
		return err
	}
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Table(r.sh.table).Where("code = ?", code).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return catalog.Errorf(catalog.CodeNotFound, "%s %d not found", r.sh.shape, code)
		}
		upd := contentUpdates(p)
		if len(upd) == 0 {
			return nil
		}
		return tx.Table(r.sh.table).Where("code = ?", code).Updates(upd).Error
	})
	return translate("update "+r.sh.shape.String(), err)
}

func (r *sqlRepo) UpdateEpisode(ctx context.Context, code int64, key catalog.EpisodeKey, p catalog.Patch) error {
	if err := catalog.ValidatePatch(r.sh.shape, p, true); err != nil {
		return err
	}
	key = catalog.NormalizeKey(r.sh.shape, key)
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := r.sh.whereKey(tx.Table(r.sh.table), code, key).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return catalog.Errorf(catalog.CodeNotFound, "%s %d %s not found", r.sh.shape, code, key)
		}
		upd := contentUpdates(p)
		if next := catalog.ApplyKey(key, p); next != key {
			if err := r.sh.whereKey(tx.Table(r.sh.table), code, next).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return catalog.Errorf(catalog.CodeDuplicateKey, "%s %d %s already exists", r.sh.shape, code, next)
			}
			if r.sh.shape == catalog.Seasoned {
				upd["season"] = next.Season
			}
			upd["series"] = next.Episode
		}
		if len(upd) == 0 {
			return nil
		}
		return r.sh.whereKey(tx.Table(r.sh.table), code, key).Updates(upd).Error
	})
	return translate("update episode", err)
}

func (r *sqlRepo) RenameSeason(ctx context.Context, code int64, from, to int) error {
	if r.sh.shape != catalog.Seasoned {
		return catalog.ErrUnsupported
	}
	if to < 1 {
		return catalog.Errorf(catalog.CodeValidation, "season must be at least 1")
	}
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Table(r.sh.table).Where("code = ? AND season = ?", code, from).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return catalog.Errorf(catalog.CodeNotFound, "season %d of %d not found", from, code)
		}
		if from == to {
			return nil
		}
		if err := tx.Table(r.sh.table).Where("code = ? AND season = ?", code, to).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return catalog.Errorf(catalog.CodeDuplicateKey, "season %d of %d already exists", to, code)
		}
		return tx.Table(r.sh.table).Where("code = ? AND season = ?", code, from).Update("season", to).Error
	})
	return translate("rename season", err)
}

func (r *sqlRepo) Delete(ctx context.Context, code int64) error {
	err := r.s.db.WithContext(ctx).Where("code = ?", code).Delete(r.sh.zero()).Error
	return translate("delete "+r.sh.shape.String(), err)
}

func (r *sqlRepo) DeleteEpisode(ctx context.Context, code int64, key catalog.EpisodeKey) error {
	key = catalog.NormalizeKey(r.sh.shape, key)
	err := r.sh.whereKey(r.s.db.WithContext(ctx), code, key).Delete(r.sh.zero()).Error
	return translate("delete episode", err)
}

func (r *sqlRepo) DeleteSeason(ctx context.Context, code int64, season int) error {
	if r.sh.shape != catalog.Seasoned {
		return catalog.ErrUnsupported
	}
	err := r.s.db.WithContext(ctx).Where("code = ? AND season = ?", code, season).Delete(r.sh.zero()).Error
	return translate("delete season", err)
}

func (r *sqlRepo) IncrementViews(ctx context.Context, code int64, key catalog.EpisodeKey) error {
	key = catalog.NormalizeKey(r.sh.shape, key)
	res := r.sh.whereKey(r.s.db.WithContext(ctx).Table(r.sh.table), code, key).
		Update("views_count", gorm.Expr("views_count + ?", 1))
	if res.Error != nil {
		return translate("increment views", res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.Errorf(catalog.CodeNotFound, "%s %d %s not found", r.sh.shape, code, key)
	}
	return nil
}

func (r *sqlRepo) RandomSample(ctx context.Context, firstEpisodeOnly bool) (*catalog.Record, error) {
	query := r.s.db.WithContext(ctx).Table(r.sh.table)
	if firstEpisodeOnly && r.sh.first != "" {
		query = query.Where(r.sh.first)
	}
	var rows []sqlRow
	if err := query.Order("RANDOM()").Limit(1).Find(&rows).Error; err != nil {
		return nil, translate("random "+r.sh.shape.String(), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record(r.sh.shape)
	return &rec, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *sqlRepo) SearchTitle(ctx context.Context, query string, limit int) ([]catalog.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	db := r.s.db.WithContext(ctx).Table(r.sh.table).Order(r.sh.order)
	// SQLite folds case for ASCII only, so there the match runs in process.
	if r.s.db.Dialector.Name() == "postgres" {
		db = db.Where("name ILIKE ?", "%"+escapeLike(query)+"%")
	}
	var rows []sqlRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, translate("search "+r.sh.shape.String(), err)
	}
	return matchTitles(recordsOf(r.sh.shape, rows), query, limit), nil
}

type sqlFavorites struct {
	s *SQL
}

func (f *sqlFavorites) Add(ctx context.Context, userID, code int64) error {
	row := FavoriteRow{UserID: userID, MovieCode: code, CreatedAt: f.s.now().UTC()}
	err := f.s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return translate("add favorite", err)
}

func (f *sqlFavorites) Remove(ctx context.Context, userID, code int64) error {
	err := f.s.db.WithContext(ctx).Where("user_id = ? AND movie_code = ?", userID, code).Delete(&FavoriteRow{}).Error
	return translate("remove favorite", err)
}

func (f *sqlFavorites) Has(ctx context.Context, userID, code int64) (bool, error) {
	var n int64
	err := f.s.db.WithContext(ctx).Model(&FavoriteRow{}).Where("user_id = ? AND movie_code = ?", userID, code).Count(&n).Error
	if err != nil {
		return false, translate("check favorite", err)
	}
	return n > 0, nil
}

func (f *sqlFavorites) ListByUser(ctx context.Context, userID int64) ([]catalog.Favorite, error) {
	var rows []FavoriteRow
	err := f.s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, translate("list favorites", err)
	}
	out := make([]catalog.Favorite, 0, len(rows))
	for _, r := range rows {
		out = append(out, catalog.Favorite{UserID: r.UserID, Code: r.MovieCode, CreatedAt: r.CreatedAt})
	}
	return out, nil
}
