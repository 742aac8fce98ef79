package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "activity-1/1700000000000_report.pdf", "application/pdf", []byte("%PDF")))

	data, err := os.ReadFile(filepath.Join(dir, "activity-1", "1700000000000_report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "http://localhost:8080/uploads/activity-1/1700000000000_report.pdf", s.URL("activity-1/1700000000000_report.pdf"))
}

func TestLocalStoreRejectsEscapingKey(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "../outside.txt", "", []byte("x")))
}

func TestS3StorePut(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path, ctype = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	s := NewS3StoreWithClient(client, S3Config{
		Bucket:   "activity-attachments",
		Region:   "us-east-1",
		Endpoint: srv.URL,
		Prefix:   "notes/",
	})

	require.NoError(t, s.Put(context.Background(), "activity-1/1_photo.jpg", "image/jpeg", []byte("jpeg")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/activity-attachments/notes/activity-1/1_photo.jpg", path)
	assert.Equal(t, "image/jpeg", ctype)
	assert.Equal(t, srv.URL+"/activity-attachments/notes/activity-1/1_photo.jpg", s.URL("activity-1/1_photo.jpg"))
}

func TestS3StoreURLDefaultsToBucketHost(t *testing.T) {
	s := NewS3StoreWithClient(nil, S3Config{Bucket: "attachments", Region: "sa-east-1"})
	assert.Equal(t, "https://attachments.s3.sa-east-1.amazonaws.com/a/b%20c.png", s.URL("a/b c.png"))
}
