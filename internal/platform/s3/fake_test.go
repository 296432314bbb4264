package s3

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "fsn1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return newClient(client, server.URL, "fsn1"), server
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func xmlError(w http.ResponseWriter, statusCode int, code string) {
	xmlResponse(w, statusCode, fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>%s</Code>
  <Message>%s</Message>
</Error>`, code, code))
}

type fakeBucket struct {
	objects   map[string][]byte
	policy    string
	lifecycle []byte
}

// fakeS3 is an in-memory path-style S3 endpoint covering the calls the
// client makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]*fakeBucket
	puts    map[string]int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: make(map[string]*fakeBucket), puts: make(map[string]int)}
}

func (f *fakeS3) client(t *testing.T) *Client {
	t.Helper()
	c, _ := testClient(t, f)
	return c
}

func (f *fakeS3) bucket(name string) *fakeBucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name]
}

func (f *fakeS3) addBucket(name string) *fakeBucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &fakeBucket{objects: make(map[string][]byte)}
	f.buckets[name] = b
	return b
}

func (f *fakeS3) putObject(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket].objects[key] = data
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[bucket].objects[key]
	return data, ok
}

func (f *fakeS3) objectCount(bucket string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets[bucket].objects)
}

func (f *fakeS3) policy(bucket string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket].policy
}

func (f *fakeS3) lifecycle(bucket string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket].lifecycle
}

func (f *fakeS3) putCount(bucket, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[bucket+"/"+key]
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	b := f.buckets[name]
	if key == "" {
		f.serveBucket(w, r, name, b)
		return
	}
	if b == nil {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		xmlError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	data, exists := b.objects[key]
	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if !exists {
			xmlError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPut:
		if exists && r.Header.Get("If-None-Match") == "*" {
			xmlError(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		body, _ := io.ReadAll(r.Body)
		b.objects[key] = body
		f.puts[name+"/"+key]++
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) serveBucket(w http.ResponseWriter, r *http.Request, name string, b *fakeBucket) {
	q := r.URL.Query()
	_, policy := q["policy"]
	_, lifecycle := q["lifecycle"]

	if b == nil && r.Method != http.MethodPut {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		xmlError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case policy:
		switch r.Method {
		case http.MethodGet:
			if b.policy == "" {
				xmlError(w, http.StatusNotFound, "NoSuchBucketPolicy")
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(b.policy))
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			b.policy = string(body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			b.policy = ""
			w.WriteHeader(http.StatusNoContent)
		}
	case lifecycle:
		switch r.Method {
		case http.MethodGet:
			if b.lifecycle == nil {
				xmlError(w, http.StatusNotFound, "NoSuchLifecycleConfiguration")
				return
			}
			xmlResponse(w, http.StatusOK, string(b.lifecycle))
		case http.MethodPut:
			b.lifecycle, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			b.lifecycle = nil
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			if b != nil {
				xmlError(w, http.StatusConflict, "BucketAlreadyOwnedByYou")
				return
			}
			f.buckets[name] = &fakeBucket{objects: make(map[string][]byte)}
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			if len(b.objects) > 0 {
				xmlError(w, http.StatusConflict, "BucketNotEmpty")
				return
			}
			delete(f.buckets, name)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}
