package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store backed by an in-memory fake HTTP
// transport. Only the S3 operations the artifact store issues are handled.
func NewMockForTests() *Store {
	rt := &mockTransport{objects: make(map[string]mockObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket", presign: s3.NewPresignClient(client)}
}

type mockTransport struct{ objects map[string]mockObject }

type mockObject struct {
	body        []byte
	contentType string
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		return m.listResponse(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead:
		if obj, ok := m.objects[key]; ok {
			return respond(http.StatusOK, nil, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
				"Content-Type":   {obj.contentType},
				"Etag":           {"\"mock-etag\""},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}), nil
		}
		return respond(http.StatusNotFound, nil, http.Header{}), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeAWSChunked(body); ok {
			body = dec
		}
		if _, exists := m.objects[key]; !exists {
			m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type")}
		}
		return respond(http.StatusOK, nil, http.Header{"Etag": {"\"mock-etag\""}}), nil
	case http.MethodGet:
		if obj, ok := m.objects[key]; ok {
			return respond(http.StatusOK, obj.body, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
				"Content-Type":   {obj.contentType},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
				"Etag":           {"\"mock-etag\""},
			}), nil
		}
		return respond(http.StatusNotFound, nil, http.Header{}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return respond(http.StatusNoContent, nil, http.Header{}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *mockTransport) listResponse(prefix string) *http.Response {
	var keys []string
	for k := range m.objects {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?><ListBucketResult><IsTruncated>false</IsTruncated>")
	for _, k := range keys {
		obj := m.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(obj.body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func respond(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

// decodeAWSChunked decodes a minimal single-chunk aws-chunked payload:
// <hex>\r\n<body>\r\n0\r\n...
func decodeAWSChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	var size int64
	if _, err := fmt.Sscanf(parts[0], "%x", &size); err != nil {
		return nil, false
	}
	if int64(len(parts[1])) != size || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
