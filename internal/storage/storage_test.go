package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	name := ObjectName("../../etc/vuokra sopimus.pdf")
	assert.True(t, strings.HasSuffix(name, "-vuokra_sopimus.pdf"), name)
	assert.NotContains(t, name, "/")

	assert.True(t, strings.HasSuffix(ObjectName("..."), "-file"))
	assert.NotEqual(t, ObjectName("a.txt"), ObjectName("a.txt"))
}

func TestLocalStore_Save(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "kuitti.txt", "text/plain", strings.NewReader("Kuitti 12,90 €"), 16)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), url)

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "Kuitti 12,90 €", string(data))
}

func TestLocalStore_CanceledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, "a.txt", "text/plain", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/legal/attachments/x.pdf",
		ObjectURL(S3Config{Endpoint: "http://minio:9000/", Bucket: "legal"}, "attachments/x.pdf"))
	assert.Equal(t, "https://legal.s3.eu-north-1.amazonaws.com/attachments/x.pdf",
		ObjectURL(S3Config{Region: "eu-north-1", Bucket: "legal"}, "attachments/x.pdf"))
}
