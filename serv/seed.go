package serv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dosco/bsonq/core"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type SeedOptions struct {
	// Number of documents to write
	Count int

	// Random seed, 0 picks a random one
	Seed int64
}

// Seed writes fake documents to a configured collection. Values are made up
// from the declared column names and types.
func (s *Service) Seed(ctx context.Context, collection string, opts SeedOptions) (int64, error) {
	coll, ok := lo.Find(s.conf.Collections, func(c core.Collection) bool {
		return c.Name == collection
	})
	if !ok || len(coll.Columns) == 0 {
		return 0, fmt.Errorf("seed: collection %s has no columns configured", collection)
	}

	drv, err := s.Driver(ctx)
	if err != nil {
		return 0, err
	}

	f := gofakeit.New(opts.Seed)
	bw := s.co.NewBulkWriter(collection, drv, core.BulkOptionSetOrdered(s.conf.Bulk.Ordered))

	var total int64
	for i := 0; i < opts.Count; i++ {
		if _, err := bw.Insert(fakeDoc(f, coll.Columns), core.InsertOptions{}); err != nil {
			return total, fmt.Errorf("seed: %w", err)
		}
		if s.conf.Bulk.BatchSize > 0 && bw.Pending() >= s.conf.Bulk.BatchSize {
			n, err := bw.Flush(ctx)
			if err != nil {
				return total, err
			}
			total += n
		}
	}

	n, err := bw.Flush(ctx)
	total += n

	s.log.Info("seed done",
		zap.String("collection", collection),
		zap.Int("documents", opts.Count),
		zap.Int64("affected", total))
	return total, err
}

func fakeDoc(f *gofakeit.Faker, cols []core.Column) map[string]any {
	doc := make(map[string]any, len(cols))
	for _, c := range cols {
		if c.Name == "id" || c.Name == "_id" {
			continue
		}
		doc[c.Name] = fakeValue(f, c)
	}
	return doc
}

func fakeValue(f *gofakeit.Faker, c core.Column) any {
	switch c.Type {
	case "int", "long":
		return f.IntRange(0, 100)
	case "double", "decimal":
		return f.Price(1, 1000)
	case "bool":
		return f.Bool()
	case "date", "timestamp":
		now := time.Now()
		return f.DateRange(now.AddDate(-1, 0, 0), now)
	case "objectid":
		return bson.NewObjectID()
	case "uuid":
		return f.UUID()
	case "binary":
		return []byte(f.LetterN(16))
	case "array":
		return []any{f.Word(), f.Word()}
	case "object":
		return map[string]any{"note": f.Word()}
	}

	name := strings.ToLower(c.Name)
	switch {
	case strings.Contains(name, "email"):
		return f.Email()
	case strings.Contains(name, "phone"):
		return f.Phone()
	case strings.Contains(name, "city"):
		return f.City()
	case strings.Contains(name, "url"):
		return f.URL()
	case strings.Contains(name, "name"):
		return f.Name()
	}
	return f.Word()
}
