package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// vectorRow is one stored section vector.
type vectorRow struct {
	Collection string `gorm:"primaryKey;size:128"`
	ID         string `gorm:"primaryKey;size:512"`
	Seq        int64  `gorm:"index"`
	Dim        int
	Vector     []byte
	Meta       string
}

func (vectorRow) TableName() string { return "section_vectors" }

// SQLiteStore persists collections in a SQLite file so a run can be
// inspected after the fact. Opening a collection clears whatever an earlier
// run left under the same name.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&vectorRow{}); err != nil {
		return nil, fmt.Errorf("migrate vector store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ForCollection(ctx context.Context, name string) (Index, error) {
	if err := s.Drop(ctx, name); err != nil {
		return nil, err
	}
	return &sqliteIndex{db: s.db, collection: name}, nil
}

func (s *SQLiteStore) Drop(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Where("collection = ?", name).Delete(&vectorRow{}).Error; err != nil {
		return fmt.Errorf("reset collection %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqliteIndex struct {
	db         *gorm.DB
	collection string

	mu  sync.Mutex
	seq int64
	dim int
	n   int
}

func (x *sqliteIndex) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	if len(vec) == 0 {
		return fmt.Errorf("upsert %q: empty vector", id)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dim == 0 {
		x.dim = len(vec)
	}
	if len(vec) != x.dim {
		return fmt.Errorf("upsert %q: %w: got %d, want %d", id, ErrDimensionMismatch, len(vec), x.dim)
	}

	row := vectorRow{
		Collection: x.collection,
		ID:         id,
		Seq:        x.seq,
		Dim:        len(vec),
		Vector:     encodeVector(vec),
		Meta:       string(metaJSON),
	}
	res := x.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"dim", "vector", "meta"}),
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("upsert %q: %w", id, res.Error)
	}
	x.seq++
	x.n = -1
	return nil
}

func (x *sqliteIndex) Query(ctx context.Context, vec []float32, topK int) ([]Candidate, error) {
	var rows []vectorRow
	if err := x.db.WithContext(ctx).
		Where("collection = ?", x.collection).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load collection %s: %w", x.collection, err)
	}

	entries := make([]entry, 0, len(rows))
	for _, r := range rows {
		if r.Dim != len(vec) {
			return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vec), r.Dim)
		}
		var meta Metadata
		if r.Meta != "" && r.Meta != "null" {
			if err := json.Unmarshal([]byte(r.Meta), &meta); err != nil {
				return nil, fmt.Errorf("decode metadata for %q: %w", r.ID, err)
			}
		}
		entries = append(entries, entry{id: r.ID, vec: decodeVector(r.Vector), meta: meta})
	}
	return rank(entries, vec, topK), nil
}

func (x *sqliteIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.n >= 0 {
		return x.n
	}
	var count int64
	if err := x.db.Model(&vectorRow{}).Where("collection = ?", x.collection).Count(&count).Error; err != nil {
		return -1
	}
	x.n = int(count)
	return x.n
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
