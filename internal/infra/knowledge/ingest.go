package knowledge

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Corpus reads knowledge-base documents from a MinIO bucket.
type Corpus struct {
	client     *minio.Client
	bucketName string
}

// NewCorpus buat koneksi MinIO ke bucket korpus
func NewCorpus(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Corpus, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Corpus{client: cli, bucketName: bucket}, nil
}

// textObject reports whether the object looks like a document we can index.
func textObject(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".txt", ".md", ".json":
		return true
	}
	return false
}

// List returns all indexable documents in the bucket.
func (c *Corpus) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	for obj := range c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", c.bucketName, obj.Err)
		}
		if !textObject(obj.Key) {
			continue
		}
		content, err := c.read(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		docs = append(docs, Document{Source: obj.Key, Content: content})
	}
	return docs, nil
}

func (c *Corpus) read(ctx context.Context, key string) (string, error) {
	obj, err := c.client.GetObject(ctx, c.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

// Ingestor pulls documents from the corpus bucket and indexes them.
type Ingestor struct {
	corpus *Corpus
	store  *Store
}

func NewIngestor(corpus *Corpus, store *Store) *Ingestor {
	return &Ingestor{corpus: corpus, store: store}
}

// Run ingests every document in the bucket and returns how many were indexed.
func (i *Ingestor) Run(ctx context.Context) (int, error) {
	docs, err := i.corpus.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := i.store.Index(ctx, docs); err != nil {
		return 0, err
	}
	log.Printf("[KNOWLEDGE] indexed %d documents from bucket", len(docs))
	return len(docs), nil
}
