package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/dirtree/pkg/testutil"
)

func BenchmarkLoadEntitiesFromFile(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("entities=%d", size), func(b *testing.B) {
			dir := b.TempDir()
			path := filepath.Join(dir, "tree.jsonl")

			entities := testutil.NewDefault().Random(size)
			content := testutil.ToJSONL(entities)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				b.Fatalf("write tree file: %v", err)
			}

			opts := ParseOptions{
				WarningHandler: func(string) {},
			}

			b.SetBytes(int64(len(content)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				loaded, err := LoadEntitiesFromFileWithOptions(path, opts)
				if err != nil {
					b.Fatalf("load entities: %v", err)
				}
				if len(loaded) != len(entities) {
					b.Fatalf("unexpected entity count: got=%d want=%d", len(loaded), len(entities))
				}
			}
		})
	}
}
