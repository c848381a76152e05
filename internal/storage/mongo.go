package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
)

// Mongo is a catalog.Store over MongoDB. Each shape lives in its own
// collection with a unique index on its key fields.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Entry
	now    func() time.Time
	repos  map[catalog.Shape]*mongoRepo
	favs   *mongoFavorites
}

var _ catalog.Store = (*Mongo)(nil)

type ContentDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Code        int64              `bson:"code"`
	Season      int                `bson:"season,omitempty"`
	Series      int                `bson:"series,omitempty"`
	Name        string             `bson:"name"`
	VideoFileID string             `bson:"video_file_id"`
	Captions    string             `bson:"captions,omitempty"`
	Genres      string             `bson:"genres"`
	ViewsCount  int64              `bson:"views_count"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d ContentDoc) record(shape catalog.Shape) catalog.Record {
	return catalog.Record{
		Shape:    shape,
		Code:     d.Code,
		Key:      catalog.NormalizeKey(shape, catalog.EpisodeKey{Season: d.Season, Episode: d.Series}),
		Title:    d.Name,
		MediaRef: d.VideoFileID,
		Caption:  d.Captions,
		Genres:   genre.Deserialize(d.Genres),
		Views:    d.ViewsCount,
	}
}

type FavoriteDoc struct {
	UserID    int64     `bson:"user_id"`
	MovieCode int64     `bson:"movie_code"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoShape struct {
	shape      catalog.Shape
	collection string
	keyFields  []string
	first      bson.M
}

var mongoShapes = map[catalog.Shape]mongoShape{
	catalog.Standalone: {shape: catalog.Standalone, collection: "feature_films", keyFields: []string{"code"}},
	catalog.Seasoned: {
		shape: catalog.Seasoned, collection: "series",
		keyFields: []string{"code", "season", "series"},
		first:     bson.M{"season": 1, "series": 1},
	},
	catalog.Flat: {
		shape: catalog.Flat, collection: "mini_series",
		keyFields: []string{"code", "series"},
		first:     bson.M{"series": 1},
	},
}

func (sh mongoShape) keyFilter(code int64, key catalog.EpisodeKey) bson.M {
	f := bson.M{"code": code}
	switch sh.shape {
	case catalog.Seasoned:
		f["season"] = key.Season
		f["series"] = key.Episode
	case catalog.Flat:
		f["series"] = key.Episode
	}
	return f
}

func (sh mongoShape) sort() bson.D {
	d := bson.D{}
	for _, k := range sh.keyFields {
		d = append(d, bson.E{Key: k, Value: 1})
	}
	return d
}

// NewMongo connects, ensures indexes and returns the store.
func NewMongo(ctx context.Context, uri, database string, log *logrus.Entry) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	m := &Mongo{client: client, db: client.Database(database), log: log, now: time.Now}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	m.repos = make(map[catalog.Shape]*mongoRepo, len(mongoShapes))
	for shape, sh := range mongoShapes {
		m.repos[shape] = &mongoRepo{m: m, sh: sh, col: m.db.Collection(sh.collection)}
	}
	m.favs = &mongoFavorites{m: m, col: m.db.Collection("favorites")}
	log.WithField("database", database).Info("catalog database ready")
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	for _, sh := range mongoShapes {
		_, err := m.db.Collection(sh.collection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    sh.sort(),
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", sh.collection, err)
		}
	}
	favs := m.db.Collection("favorites")
	_, err := favs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "movie_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("index favorites: %w", err)
	}
	return nil
}

// Database exposes the underlying database so other stores can share the
// connection.
func (m *Mongo) Database() *mongo.Database { return m.db }

func (m *Mongo) Repo(shape catalog.Shape) catalog.Repository {
	r, ok := m.repos[shape]
	if !ok {
		panic(fmt.Sprintf("storage: no repository for shape %s", shape))
	}
	return r
}

func (m *Mongo) Favorites() catalog.Favorites { return m.favs }

func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func mongoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, catalog.ErrDuplicateKey)
	}
	return catalog.Storage(op, err)
}

func (m *Mongo) owner(ctx context.Context, code int64) (catalog.Shape, error) {
	for _, shape := range catalog.Shapes {
		n, err := m.repos[shape].col.CountDocuments(ctx, bson.M{"code": code}, options.Count().SetLimit(1))
		if err != nil {
			return catalog.ShapeNone, mongoErr("find owner", err)
		}
		if n > 0 {
			return shape, nil
		}
	}
	return catalog.ShapeNone, nil
}

func (m *Mongo) Lookup(ctx context.Context, code int64) (*catalog.Item, error) {
	for _, shape := range catalog.Shapes {
		recs, err := m.repos[shape].Episodes(ctx, code)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return &catalog.Item{Shape: shape, Code: code, Records: recs}, nil
		}
	}
	return nil, nil
}

func (m *Mongo) RenameCode(ctx context.Context, oldCode, newCode int64) error {
	if newCode < 1 {
		return catalog.Errorf(catalog.CodeValidation, "code must be a positive number")
	}
	shape, err := m.owner(ctx, oldCode)
	if err != nil {
		return err
	}
	if shape == catalog.ShapeNone {
		return catalog.Errorf(catalog.CodeNotFound, "code %d not found", oldCode)
	}
	if oldCode == newCode {
		return nil
	}
	taken, err := m.owner(ctx, newCode)
	if err != nil {
		return err
	}
	if taken != catalog.ShapeNone {
		return catalog.Errorf(catalog.CodeCodeConflict, "code %d is already used by a %s item", newCode, taken)
	}
	_, err = m.repos[shape].col.UpdateMany(ctx,
		bson.M{"code": oldCode},
		bson.M{"$set": bson.M{"code": newCode, "updated_at": m.now()}},
	)
	return mongoErr("rename code", err)
}

func (m *Mongo) MoveEpisodeToStandalone(ctx context.Context, shape catalog.Shape, code int64, key catalog.EpisodeKey, newCode int64) error {
	if !shape.Episodic() {
		return catalog.ErrUnsupported
	}
	src := m.repos[shape]
	ep, err := src.Episode(ctx, code, key)
	if err != nil {
		return err
	}
	if ep == nil {
		return catalog.Errorf(catalog.CodeNotFound, "episode %s of %d not found", key, code)
	}
	film := catalog.Record{
		Shape:    catalog.Standalone,
		Code:     newCode,
		Title:    ep.Title,
		MediaRef: ep.MediaRef,
		Caption:  ep.Caption,
	}
	if err := catalog.Validate(film); err != nil {
		return err
	}
	films := m.repos[catalog.Standalone]
	if _, err := films.col.InsertOne(ctx, films.doc(film)); err != nil {
		return mongoErr("move episode", err)
	}
	if _, err := src.col.DeleteOne(ctx, src.sh.keyFilter(code, catalog.NormalizeKey(shape, key))); err != nil {
		// Without a transaction the copy has to be undone by hand.
		if _, undoErr := films.col.DeleteOne(ctx, bson.M{"code": newCode}); undoErr != nil {
			m.log.WithError(undoErr).WithField("code", newCode).Error("failed to undo episode move")
		}
		return mongoErr("move episode", err)
	}
	return nil
}

func (m *Mongo) Rankings(ctx context.Context, q catalog.RankQuery) ([]catalog.Ranking, error) {
	pipeline := mongo.Pipeline{}
	if !q.Since.IsZero() {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": q.Since}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{"_id": "$movie_code", "favs": bson.M{"$sum": 1}}}})
	cur, err := m.favs.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongoErr("count favorites", err)
	}
	var counts []struct {
		Code int64 `bson:"_id"`
		Favs int64 `bson:"favs"`
	}
	if err := cur.All(ctx, &counts); err != nil {
		return nil, mongoErr("count favorites", err)
	}
	favs := make(map[int64]int64, len(counts))
	for _, c := range counts {
		favs[c.Code] = c.Favs
	}

	filter := bson.M{}
	if len(q.Genres) > 0 {
		or := make(bson.A, 0, len(q.Genres))
		for _, g := range q.Genres {
			or = append(or, bson.M{"genres": primitive.Regex{Pattern: regexp.QuoteMeta(genre.Pattern(g))}})
		}
		filter["$or"] = or
	}
	var out []catalog.Ranking
	for _, shape := range catalog.Shapes {
		recs, err := m.repos[shape].find(ctx, filter, options.Find())
		if err != nil {
			return nil, err
		}
		out = append(out, aggregate(shape, recs, favs)...)
	}
	return out, nil
}

type mongoRepo struct {
	m   *Mongo
	sh  mongoShape
	col *mongo.Collection
}

func (r *mongoRepo) Shape() catalog.Shape { return r.sh.shape }

func (r *mongoRepo) doc(rec catalog.Record) ContentDoc {
	rec.Key = catalog.NormalizeKey(r.sh.shape, rec.Key)
	return ContentDoc{
		Code:        rec.Code,
		Season:      rec.Key.Season,
		Series:      rec.Key.Episode,
		Name:        rec.Title,
		VideoFileID: rec.MediaRef,
		Captions:    rec.Caption,
		Genres:      genre.Serialize(rec.Genres),
		ViewsCount:  rec.Views,
		UpdatedAt:   r.m.now(),
	}
}

func (r *mongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]catalog.Record, error) {
	cur, err := r.col.Find(ctx, filter, opts.SetSort(r.sh.sort()))
	if err != nil {
		return nil, mongoErr("find "+r.sh.shape.String(), err)
	}
	defer cur.Close(ctx)
	var out []catalog.Record
	for cur.Next(ctx) {
		var d ContentDoc
		if err := cur.Decode(&d); err != nil {
			r.m.log.WithError(err).WithField("collection", r.sh.collection).Warn("skipping undecodable document")
			continue
		}
		out = append(out, d.record(r.sh.shape))
	}
	return out, mongoErr("find "+r.sh.shape.String(), cur.Err())
}

func (r *mongoRepo) Create(ctx context.Context, rec catalog.Record) error {
	rec.Shape = r.sh.shape
	rec.Views = 0
	if err := catalog.Validate(rec); err != nil {
		return err
	}
	owner, err := r.m.owner(ctx, rec.Code)
	if err != nil {
		return err
	}
	if owner != catalog.ShapeNone && owner != r.sh.shape {
		return catalog.Errorf(catalog.CodeCodeConflict, "code %d is already used by a %s item", rec.Code, owner)
	}
	propagate := false
	if r.sh.shape.Episodic() && owner == r.sh.shape {
		if len(rec.Genres) > 0 {
			propagate = true
		} else {
			existing, err := catalog.GenresOf(ctx, r, rec.Code)
			if err != nil {
				return err
			}
			rec.Genres = existing
		}
	}
	// The unique index decides duplicates before siblings are touched.
	_, err = r.col.InsertOne(ctx, r.doc(rec))
	if mongo.IsDuplicateKeyError(err) {
		return catalog.Errorf(catalog.CodeDuplicateKey, "%s %d %s already exists", r.sh.shape, rec.Code, rec.Key)
	}
	if err != nil {
		return mongoErr("create "+r.sh.shape.String(), err)
	}
	if propagate {
		_, err := r.col.UpdateMany(ctx, bson.M{"code": rec.Code},
			bson.M{"$set": bson.M{"genres": genre.Serialize(rec.Genres)}})
		if err != nil {
			return mongoErr("propagate genres", err)
		}
	}
	return nil
}

func (r *mongoRepo) Episodes(ctx context.Context, code int64) ([]catalog.Record, error) {
	recs, err := r.find(ctx, bson.M{"code": code}, options.Find())
	if recs == nil && err == nil {
		recs = []catalog.Record{}
	}
	return recs, err
}

func (r *mongoRepo) Episode(ctx context.Context, code int64, key catalog.EpisodeKey) (*catalog.Record, error) {
	var d ContentDoc
	err := r.col.FindOne(ctx, r.sh.keyFilter(code, catalog.NormalizeKey(r.sh.shape, key))).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, mongoErr("get "+r.sh.shape.String(), err)
	}
	rec := d.record(r.sh.shape)
	return &rec, nil
}

func contentSet(p catalog.Patch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if p.Title != nil {
		set["name"] = *p.Title
	}
	if p.MediaRef != nil {
		set["video_file_id"] = *p.MediaRef
	}
	if p.Caption != nil {
		set["captions"] = *p.Caption
	}
	if p.Genres != nil {
		set["genres"] = genre.Serialize(*p.Genres)
	}
	return set
}

func (r *mongoRepo) UpdateGlobal(ctx context.Context, code int64, p catalog.Patch) error {
	if err := catalog.ValidatePatch(r.sh.shape, p, false); err != nil {
		return err
	}
	res, err := r.col.UpdateMany(ctx, bson.M{"code": code}, bson.M{"$set": contentSet(p, r.m.now())})
	if err != nil {
		return mongoErr("update "+r.sh.shape.String(), err)
	}
	if res.MatchedCount == 0 {
		return catalog.Errorf(catalog.CodeNotFound, "%s %d not found", r.sh.shape, code)
	}
	return nil
}

func (r *mongoRepo) UpdateEpisode(ctx context.Context, code int64, key catalog.EpisodeKey, p catalog.Patch) error {
	if err := catalog.ValidatePatch(r.sh.shape, p, true); err != nil {
		return err
	}
	key = catalog.NormalizeKey(r.sh.shape, key)
	set := contentSet(p, r.m.now())
	if next := catalog.ApplyKey(key, p); next != key {
		n, err := r.col.CountDocuments(ctx, r.sh.keyFilter(code, next))
		if err != nil {
			return mongoErr("update episode", err)
		}
		if n > 0 {
			return catalog.Errorf(catalog.CodeDuplicateKey, "%s %d %s already exists", r.sh.shape, code, next)
		}
		if r.sh.shape == catalog.Seasoned {
			set["season"] = next.Season
		}
		set["series"] = next.Episode
	}
	res, err := r.col.UpdateOne(ctx, r.sh.keyFilter(code, key), bson.M{"$set": set})
	if err != nil {
		return mongoErr("update episode", err)
	}
	if res.MatchedCount == 0 {
		return catalog.Errorf(catalog.CodeNotFound, "%s %d %s not found", r.sh.shape, code, key)
	}
	return nil
}

func (r *mongoRepo) RenameSeason(ctx context.Context, code int64, from, to int) error {
	if r.sh.shape != catalog.Seasoned {
		return catalog.ErrUnsupported
	}
	if to < 1 {
		return catalog.Errorf(catalog.CodeValidation, "season must be at least 1")
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"code": code, "season": from})
	if err != nil {
		return mongoErr("rename season", err)
	}
	if n == 0 {
		return catalog.Errorf(catalog.CodeNotFound, "season %d of %d not found", from, code)
	}
	if from == to {
		return nil
	}
	n, err = r.col.CountDocuments(ctx, bson.M{"code": code, "season": to})
	if err != nil {
		return mongoErr("rename season", err)
	}
	if n > 0 {
		return catalog.Errorf(catalog.CodeDuplicateKey, "season %d of %d already exists", to, code)
	}
	_, err = r.col.UpdateMany(ctx, bson.M{"code": code, "season": from},
		bson.M{"$set": bson.M{"season": to, "updated_at": r.m.now()}})
	return mongoErr("rename season", err)
}

func (r *mongoRepo) Delete(ctx context.Context, code int64) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"code": code})
	return mongoErr("delete "+r.sh.shape.String(), err)
}

func (r *mongoRepo) DeleteEpisode(ctx context.Context, code int64, key catalog.EpisodeKey) error {
	_, err := r.col.DeleteOne(ctx, r.sh.keyFilter(code, catalog.NormalizeKey(r.sh.shape, key)))
	return mongoErr("delete episode", err)
}

func (r *mongoRepo) DeleteSeason(ctx context.Context, code int64, season int) error {
	if r.sh.shape != catalog.Seasoned {
		return catalog.ErrUnsupported
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"code": code, "season": season})
	return mongoErr("delete season", err)
}

func (r *mongoRepo) IncrementViews(ctx context.Context, code int64, key catalog.EpisodeKey) error {
	res, err := r.col.UpdateOne(ctx,
		r.sh.keyFilter(code, catalog.NormalizeKey(r.sh.shape, key)),
		bson.M{"$inc": bson.M{"views_count": 1}},
	)
	if err != nil {
		return mongoErr("increment views", err)
	}
	if res.MatchedCount == 0 {
		return catalog.Errorf(catalog.CodeNotFound, "%s %d %s not found", r.sh.shape, code, key)
	}
	return nil
}

func (r *mongoRepo) RandomSample(ctx context.Context, firstEpisodeOnly bool) (*catalog.Record, error) {
	match := bson.M{}
	if firstEpisodeOnly && r.sh.first != nil {
		match = r.sh.first
	}
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	})
	if err != nil {
		return nil, mongoErr("random "+r.sh.shape.String(), err)
	}
	var docs []ContentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("random "+r.sh.shape.String(), err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	rec := docs[0].record(r.sh.shape)
	return &rec, nil
}

func (r *mongoRepo) SearchTitle(ctx context.Context, query string, limit int) ([]catalog.Record, error) {
	if query == "" {
		return nil, nil
	}
	filter := bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	recs, err := r.find(ctx, filter, options.Find())
	if err != nil {
		return nil, err
	}
	return matchTitles(recs, query, limit), nil
}

type mongoFavorites struct {
	m   *Mongo
	col *mongo.Collection
}

func (f *mongoFavorites) Add(ctx context.Context, userID, code int64) error {
	_, err := f.col.UpdateOne(ctx,
		bson.M{"user_id": userID, "movie_code": code},
		bson.M{"$setOnInsert": FavoriteDoc{UserID: userID, MovieCode: code, CreatedAt: f.m.now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return mongoErr("add favorite", err)
}

func (f *mongoFavorites) Remove(ctx context.Context, userID, code int64) error {
	_, err := f.col.DeleteOne(ctx, bson.M{"user_id": userID, "movie_code": code})
	return mongoErr("remove favorite", err)
}

func (f *mongoFavorites) Has(ctx context.Context, userID, code int64) (bool, error) {
	n, err := f.col.CountDocuments(ctx, bson.M{"user_id": userID, "movie_code": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, mongoErr("check favorite", err)
	}
	return n > 0, nil
}

func (f *mongoFavorites) ListByUser(ctx context.Context, userID int64) ([]catalog.Favorite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := f.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, mongoErr("list favorites", err)
	}
	defer cur.Close(ctx)
	out := []catalog.Favorite{}
	for cur.Next(ctx) {
		var d FavoriteDoc
		if err := cur.Decode(&d); err != nil {
			continue
		}
		out = append(out, catalog.Favorite{UserID: d.UserID, Code: d.MovieCode, CreatedAt: d.CreatedAt})
	}
	return out, mongoErr("list favorites", cur.Err())
}
