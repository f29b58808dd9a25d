package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChinmayNoob/lsmkv/record"
)

// newSeedCmd inserts demo Photo records: either N generated records with
// uuid-derived ids, or the id/url/thumbnail_url lines of a fixture file
// when --from is given, mirroring the original photos.txt loader.
func newSeedCmd() *cobra.Command {
	var count int
	var from string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo Photo records",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(); _ = logger.Sync() }()

			var photos []record.Photo
			if from != "" {
				photos, err = loadPhotosFromFile(from)
				if err != nil {
					return err
				}
			} else {
				photos = generatePhotos(count)
			}

			for _, p := range photos {
				if err := e.Insert(p); err != nil {
					return err
				}
			}
			fmt.Printf("ok: inserted %d records\n", len(photos))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of generated demo records to insert")
	cmd.Flags().StringVar(&from, "from", "", "path to an id/url/thumbnail_url fixture file, one record per line")
	return cmd
}

func generatePhotos(n int) []record.Photo {
	out := make([]record.Photo, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		out = append(out, record.Photo{
			ID:           id,
			URL:          "https://example.com/photos/" + id,
			ThumbnailURL: "https://example.com/thumbs/" + id,
		})
	}
	return out
}

// loadPhotosFromFile reads whitespace-separated "id url thumbnail_url"
// lines, one per record, skipping blank lines.
func loadPhotosFromFile(path string) ([]record.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []record.Photo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("seed: malformed fixture line %q", line)
		}
		out = append(out, record.Photo{ID: fields[0], URL: fields[1], ThumbnailURL: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return out, nil
}
