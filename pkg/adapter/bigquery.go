package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// QueryParam is a named query parameter (@name in SQL)
type QueryParam struct {
	Name  string
	Value any
}

// BigQuery is an interface for BigQuery operations
type BigQuery interface {
	// DryRun executes a query in dry-run mode and returns the number of bytes that will be scanned
	DryRun(ctx context.Context, query string, params ...QueryParam) (int64, error)

	// Query executes a query, waits for it and returns all rows
	Query(ctx context.Context, query string, params ...QueryParam) ([]map[string]any, error)
}

type bigqueryClient struct {
	client  *bigquery.Client
	maxRows int
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithMaxRows caps the number of rows read from one result
func WithMaxRows(n int) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.maxRows = n
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:  client,
		maxRows: 1000,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *bigqueryClient) newQuery(query string, params []QueryParam) *bigquery.Query {
	q := bq.client.Query(query)
	for _, p := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: p.Name, Value: p.Value})
	}
	return q
}

func (bq *bigqueryClient) DryRun(ctx context.Context, query string, params ...QueryParam) (int64, error) {
	q := bq.newQuery(query, params)
	q.DryRun = true

	job, err := q.Run(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run dry-run query")
	}

	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return 0, goerr.New("no statistics available from dry-run")
	}

	return status.Statistics.TotalBytesProcessed, nil
}

func (bq *bigqueryClient) Query(ctx context.Context, query string, params ...QueryParam) ([]map[string]any, error) {
	q := bq.newQuery(query, params)

	job, err := q.Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wait for query completion", goerr.V("job_id", job.ID()))
	}
	if status.Err() != nil {
		return nil, goerr.Wrap(status.Err(), "query execution failed", goerr.V("job_id", job.ID()))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read query result")
	}

	var results []map[string]any
	for len(results) < bq.maxRows {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result")
		}

		rowMap := make(map[string]any, len(row))
		for k, v := range row {
			rowMap[k] = v
		}
		results = append(results, rowMap)
	}

	return results, nil
}
