package benchmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/search"
	"github.com/hyperjump/miru/internal/storage"
	"github.com/hyperjump/miru/internal/vector"
)

func randomDatabase(catalogs, pages, dims int) *models.Database {
	rng := rand.New(rand.NewPCG(1, 2))
	db := storage.New("bench", time.Unix(0, 0))
	for c := 0; c < catalogs; c++ {
		cat := models.Catalog{Name: fmt.Sprintf("Catalog%03d", c), SourceFile: fmt.Sprintf("%03d-Catalog%03d.pdf", c, c)}
		for p := 0; p < pages; p++ {
			vec := make([]float32, dims)
			for i := range vec {
				vec[i] = float32(rng.NormFloat64())
			}
			cat.Pages = append(cat.Pages, models.Page{PageNumber: p + 1, ImagePath: "x.jpg", Embedding: vec})
		}
		db.Catalogs = append(db.Catalogs, cat)
	}
	return db
}

func BenchmarkRank(b *testing.B) {
	for _, size := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("pages=%d", size), func(b *testing.B) {
			db := randomDatabase(size/100, 100, 512)
			query := db.Catalogs[0].Pages[0].Embedding
			engine := search.NewEngine()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = engine.Rank(db, query, 5)
			}
		})
	}
}

func BenchmarkCosine(b *testing.B) {
	db := randomDatabase(1, 2, 512)
	x, y := db.Catalogs[0].Pages[0].Embedding, db.Catalogs[0].Pages[1].Embedding
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vector.Cosine(vector.Float64Ops{}, x, y)
	}
}

func BenchmarkLoad(b *testing.B) {
	path := filepath.Join(b.TempDir(), "db.json")
	if err := storage.Save(randomDatabase(20, 50, 512), path); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := storage.Load(path); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMockEmbedder_EmbedImage(b *testing.B) {
	e := embedding.NewMockEmbedder("", 512)
	ctx := context.Background()
	data := make([]byte, 64<<10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedImage(ctx, data)
	}
}
