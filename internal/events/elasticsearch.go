package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"roommate-match-workers/internal/models"
)

// ElasticsearchSink indexes events into one index, keyed by event id.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Emit(ctx context.Context, event models.Event) error {
	doc := map[string]interface{}{
		"name":       event.Name,
		"userId":     event.UserID,
		"properties": event.Properties,
		"occurredAt": event.OccurredAt,
	}
	if key, ok := event.Properties["pairKey"]; ok {
		doc["pairKey"] = key
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index event: %s: %s", res.Status(), string(msg))
	}
	return nil
}
