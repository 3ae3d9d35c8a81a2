package corpus

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

var (
	tableRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*\.[A-Za-z0-9_]+\.[A-Za-z0-9_]+$`)
	columnRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// BigQueryParams selects a text column of a BigQuery table as the corpus.
type BigQueryParams struct {
	// Project is the project that runs the query.
	Project string
	// Table is the fully qualified table, "project.dataset.table".
	Table string
	// Column holds the text. Defaults to "text".
	Column string
	// Location of the dataset. Defaults to "US".
	Location string
	// Limit caps the number of rows read. Zero reads every row.
	Limit int
}

func buildQuery(p BigQueryParams) (string, error) {
	if !tableRe.MatchString(p.Table) {
		return "", fmt.Errorf("invalid table %q, want project.dataset.table", p.Table)
	}
	column := p.Column
	if column == "" {
		column = "text"
	}
	if !columnRe.MatchString(column) {
		return "", fmt.Errorf("invalid column %q", column)
	}
	if p.Limit < 0 {
		return "", errors.New("limit must not be negative")
	}

	query := fmt.Sprintf("SELECT %s FROM `%s` WHERE %s IS NOT NULL", column, p.Table, column)
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}
	return query, nil
}

// LoadBigQuery concatenates the selected column of every row, separated by
// spaces.
func LoadBigQuery(ctx context.Context, p BigQueryParams) (string, error) {
	query, err := buildQuery(p)
	if err != nil {
		return "", err
	}

	client, err := bigquery.NewClient(ctx, p.Project)
	if err != nil {
		return "", fmt.Errorf("bigquery.NewClient: %w", err)
	}
	defer client.Close()

	q := client.Query(query)
	q.Location = p.Location
	if q.Location == "" {
		q.Location = "US"
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("q.Run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("job.Wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("status.Err: %w", err)
	}
	it, err := job.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("job.Read: %w", err)
	}

	var sb strings.Builder
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("it.Next: %w", err)
		}

		text, ok := row[0].(string)
		if !ok {
			return "", fmt.Errorf("row[0] is not a string: %v", row[0])
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Normalize(text))
	}
	return sb.String(), nil
}
