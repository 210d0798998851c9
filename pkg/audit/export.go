package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportFormat selects the export encoding
type ExportFormat string

const (
	FormatCSV    ExportFormat = "csv"
	FormatJSON   ExportFormat = "json"
	FormatNDJSON ExportFormat = "ndjson"
)

// ContentType returns the MIME type for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatNDJSON:
		return "application/x-ndjson"
	}
	return "application/json"
}

// WriteExport encodes entries in the given format
func WriteExport(w io.Writer, format ExportFormat, entries []*Entry) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatNDJSON:
		return writeNDJSON(w, entries)
	case FormatJSON:
		return json.NewEncoder(w).Encode(entries)
	}
	return fmt.Errorf("unknown export format: %s", format)
}

func writeCSV(w io.Writer, entries []*Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "user_id", "action", "entity_type", "entity_id",
		"details", "ip_address", "user_agent", "created_at",
	}); err != nil {
		return err
	}

	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			formatID(e.UserID),
			string(e.Action),
			string(e.EntityType),
			formatID(e.EntityID),
			string(e.Details),
			e.IPAddress,
			e.UserAgent,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeNDJSON(w io.Writer, entries []*Entry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// s3Client is the slice of the S3 API the exporter uses
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads audit exports to an S3 bucket
type S3Exporter struct {
	client s3Client
	bucket string
	prefix string
}

// NewS3Exporter builds an exporter from the ambient AWS configuration
func NewS3Exporter(ctx context.Context, bucket, prefix, region string) (*S3Exporter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Exporter{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// NewS3ExporterWithClient wires an explicit client, used in tests
func NewS3ExporterWithClient(client s3Client, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix}
}

// Upload writes one day's entries as NDJSON under
// <prefix>/<YYYY-MM-DD>.ndjson
func (e *S3Exporter) Upload(ctx context.Context, day time.Time, entries []*Entry) (string, error) {
	var buf bytes.Buffer
	if err := writeNDJSON(&buf, entries); err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	key := fmt.Sprintf("%s/%s.ndjson", e.prefix, day.Format("2006-01-02"))
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(FormatNDJSON.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit export: %w", err)
	}
	return key, nil
}
