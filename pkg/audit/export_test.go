package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []*Entry {
	userID := int64(7)
	entityID := int64(5)
	return []*Entry{
		{
			ID:         1,
			UserID:     &userID,
			Action:     ActionCreate,
			EntityType: EntityLead,
			EntityID:   &entityID,
			Details:    json.RawMessage(`{"kind":"create","snapshot":{"email":"lead@example.com"}}`),
			IPAddress:  "10.0.0.1",
			UserAgent:  "curl/8",
			CreatedAt:  time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:         2,
			Action:     ActionLogout,
			EntityType: EntityUser,
			CreatedAt:  time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, FormatCSV, sampleEntries()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,user_id,action,entity_type,entity_id,details,ip_address,user_agent,created_at", lines[0])
	assert.Contains(t, lines[1], "CREATE")
	assert.Contains(t, lines[1], "2026-08-28T12:00:00Z")
	assert.Contains(t, lines[2], "LOGOUT")
}

func TestWriteExportNDJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, FormatNDJSON, sampleEntries()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, ActionCreate, first.Action)
	assert.Equal(t, EntityLead, first.EntityType)
}

func TestWriteExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExport(&buf, FormatJSON, sampleEntries()))

	var decoded []*Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, int64(1), decoded[0].ID)
}

func TestWriteExportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteExport(&buf, ExportFormat("xml"), sampleEntries())
	require.Error(t, err)
}

type capturingS3 struct {
	input *s3.PutObjectInput
}

func (c *capturingS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.input = params
	return &s3.PutObjectOutput{}, nil
}

func TestS3ExporterUpload(t *testing.T) {
	client := &capturingS3{}
	exporter := NewS3ExporterWithClient(client, "meridian-audit", "audit")

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	key, err := exporter.Upload(context.Background(), day, sampleEntries())
	require.NoError(t, err)
	assert.Equal(t, "audit/2026-08-28.ndjson", key)

	require.NotNil(t, client.input)
	assert.Equal(t, "meridian-audit", *client.input.Bucket)
	assert.Equal(t, "audit/2026-08-28.ndjson", *client.input.Key)
	assert.Equal(t, "application/x-ndjson", *client.input.ContentType)

	body, err := io.ReadAll(client.input.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "\n"))
}
