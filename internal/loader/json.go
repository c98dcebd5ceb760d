package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// normalisedKeys never end up in a document's extra fields.
var normalisedKeys = map[string]bool{
	"id": true, "title": true, "text": true, "source": true, "created_at": true, "file_type": true,
}

// jsonDocuments accepts a single object or an array of objects. Entries without text are skipped.
func jsonDocuments(f fileMeta, content []byte) ([]models.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xEF\xBB\xBF"))))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	var entries []interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		entries = []interface{}{v}
	case []interface{}:
		entries = v
	default:
		return nil, fmt.Errorf("unexpected JSON structure: want object or array, got %T", raw)
	}

	docs := make([]models.Document, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		doc := models.Document{
			ID:        firstString(entry, f.stem()+"_"+strconv.Itoa(i), "id"),
			Title:     firstString(entry, f.stemTitle(), "title", "name"),
			Text:      firstString(entry, "", "text", "content", "description"),
			Source:    firstString(entry, f.source(), "source"),
			CreatedAt: firstString(entry, f.createdAt(), "created_at"),
			FileType:  FileTypeJSON,
		}
		if doc.Text == "" {
			continue
		}
		for k, v := range entry {
			if normalisedKeys[k] {
				continue
			}
			if doc.Extra == nil {
				doc.Extra = make(map[string]interface{})
			}
			doc.Extra[k] = v
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// firstString returns the first of keys present in entry, rendered as a string,
// or def when none is present. A present key wins even if its value is empty.
func firstString(entry map[string]interface{}, def string, keys ...string) string {
	for _, k := range keys {
		v, ok := entry[k]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			return s
		case nil:
			return ""
		case json.Number:
			return s.String()
		default:
			b, err := json.Marshal(s)
			if err != nil {
				return fmt.Sprint(s)
			}
			return string(b)
		}
	}
	return def
}
