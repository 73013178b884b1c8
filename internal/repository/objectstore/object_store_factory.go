// Package objectstore provides object storage repository implementations and factory.
//
// Every repository is one subvolume: a named backend that a layout can route
// objects to.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectRepository defines the interface for object storage operations
type ObjectRepository interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
	Download(ctx context.Context, key string, quiet bool) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	// Name identifies the repository as a subvolume, "<type>://<bucket>".
	Name() string
	GetBucketName() string
	GetStorageType() string
}

// RepositoryType represents the type of object storage
type RepositoryType string

const (
	S3Type     RepositoryType = "s3"
	GCSType    RepositoryType = "gcs"
	MemoryType RepositoryType = "mem"
)

// BucketConfig holds configuration for a storage bucket
type BucketConfig struct {
	Name string
	Type RepositoryType
}

// String renders the config in URI form.
func (c BucketConfig) String() string {
	return subvolumeName(c.Type, c.Name)
}

func subvolumeName(t RepositoryType, bucket string) string {
	return fmt.Sprintf("%s://%s", t, bucket)
}

// ClientProvider lazily supplies SDK clients, so a deployment with only GCS
// subvolumes never needs AWS credentials and vice versa.
type ClientProvider interface {
	AWSConfig() (aws.Config, error)
	GCSClient() (*storage.Client, error)
}

// ObjectRepositoryFactory creates object repository instances
type ObjectRepositoryFactory struct {
	clients  ClientProvider
	s3Client *s3.Client
}

// NewObjectRepositoryFactory creates a new factory
func NewObjectRepositoryFactory(clients ClientProvider) *ObjectRepositoryFactory {
	return &ObjectRepositoryFactory{
		clients: clients,
	}
}

// CreateRepository creates a repository based on bucket configuration
func (f *ObjectRepositoryFactory) CreateRepository(config BucketConfig) (ObjectRepository, error) {
	switch config.Type {
	case S3Type:
		client, err := f.s3()
		if err != nil {
			return nil, err
		}
		repo := NewS3ObjectRepository(client, config.Name)
		return &repo, nil
	case GCSType:
		if f.clients == nil {
			return nil, fmt.Errorf("GCS client not configured")
		}
		client, err := f.clients.GCSClient()
		if err != nil {
			return nil, err
		}
		repo := NewGCSObjectRepository(client, config.Name)
		return &repo, nil
	case MemoryType:
		return NewMemoryObjectRepository(config.Name), nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", config.Type)
	}
}

// CreateRepositories creates one repository per config, preserving order.
func (f *ObjectRepositoryFactory) CreateRepositories(configs []BucketConfig) ([]ObjectRepository, error) {
	repos := make([]ObjectRepository, 0, len(configs))
	for _, c := range configs {
		repo, err := f.CreateRepository(c)
		if err != nil {
			return nil, fmt.Errorf("failed to create repository %s: %w", c, err)
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func (f *ObjectRepositoryFactory) s3() (*s3.Client, error) {
	if f.s3Client != nil {
		return f.s3Client, nil
	}
	if f.clients == nil {
		return nil, fmt.Errorf("AWS config not configured")
	}
	awsConfig, err := f.clients.AWSConfig()
	if err != nil {
		return nil, err
	}
	f.s3Client = s3.NewFromConfig(awsConfig)
	return f.s3Client, nil
}

// ParseBucketConfig parses bucket configuration from string
// Formats: "s3://bucket-name", "gs://bucket-name", "mem://name", "s3:bucket-name", or "bucket-name" (defaults to S3)
func ParseBucketConfig(bucketStr string) (BucketConfig, error) {
	bucketStr = strings.TrimSpace(bucketStr)
	if bucketStr == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}

	// Handle URI format (s3://, gs://, mem://)
	if strings.Contains(bucketStr, "://") {
		parts := strings.SplitN(bucketStr, "://", 2)

		scheme := strings.ToLower(strings.TrimSpace(parts[0]))
		bucketName := strings.TrimSpace(parts[1])

		if bucketName == "" {
			return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
		}

		repoType, err := parseRepositoryType(scheme)
		if err != nil {
			return BucketConfig{}, err
		}

		return BucketConfig{
			Name: bucketName,
			Type: repoType,
		}, nil
	}

	// Handle colon format (s3:bucket-name)
	parts := strings.SplitN(bucketStr, ":", 2)
	if len(parts) != 2 {
		// Default to S3 for backward compatibility
		return BucketConfig{
			Name: bucketStr,
			Type: S3Type,
		}, nil
	}

	bucketName := strings.TrimSpace(parts[1])
	if bucketName == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}

	repoType, err := parseRepositoryType(strings.ToLower(strings.TrimSpace(parts[0])))
	if err != nil {
		return BucketConfig{}, err
	}

	return BucketConfig{
		Name: bucketName,
		Type: repoType,
	}, nil
}

// ParseBucketConfigs parses an ordered list of bucket strings.
func ParseBucketConfigs(bucketStrs []string) ([]BucketConfig, error) {
	configs := make([]BucketConfig, 0, len(bucketStrs))
	seen := make(map[string]struct{}, len(bucketStrs))
	for _, s := range bucketStrs {
		c, err := ParseBucketConfig(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.String()]; dup {
			return nil, fmt.Errorf("duplicate subvolume: %s", c)
		}
		seen[c.String()] = struct{}{}
		configs = append(configs, c)
	}
	return configs, nil
}

func parseRepositoryType(scheme string) (RepositoryType, error) {
	switch scheme {
	case "s3":
		return S3Type, nil
	case "gs", "gcs":
		return GCSType, nil
	case "mem", "memory":
		return MemoryType, nil
	default:
		return "", fmt.Errorf("unsupported scheme: %s", scheme)
	}
}
