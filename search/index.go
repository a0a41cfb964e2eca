// Package search maintains a full-text index over the medicine
// catalogue for the dashboard's search box. The index is in-memory and
// rebuilt from the store at startup; the store stays the source of
// truth.
package search

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/blugelabs/bluge"

	"medhub/domain"
)

type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
}

func NewIndex() (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{writer: writer}, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}

// Rebuild replaces the index content with the given catalogue.
func (i *Index) Rebuild(medicines []domain.Medicine) error {
	for _, m := range medicines {
		if err := i.Upsert(m); err != nil {
			return err
		}
	}
	return nil
}

// Upsert indexes one medicine, replacing any previous document.
func (i *Index) Upsert(m domain.Medicine) error {
	doc := bluge.NewDocument(strconv.FormatInt(m.ID, 10)).
		AddField(bluge.NewTextField("name", m.Name)).
		AddField(bluge.NewTextField("generic_name", m.GenericName)).
		AddField(bluge.NewTextField("category", m.Category))

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index medicine %d: %w", m.ID, err)
	}
	return nil
}

// Search returns the ids of medicines matching the query text over
// name, generic name and category, best match first.
func (i *Index) Search(ctx context.Context, text string, limit int) ([]int64, error) {
	query := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(text).SetField("name")).
		AddShould(bluge.NewMatchQuery(text).SetField("generic_name")).
		AddShould(bluge.NewMatchQuery(text).SetField("category"))

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("search reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var ids []int64
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("search iterate: %w", err)
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, convErr := strconv.ParseInt(string(value), 10, 64); convErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("search visit: %w", err)
		}
	}
	return ids, nil
}
