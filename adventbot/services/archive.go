package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveService keeps a history of leaderboard snapshots in an
// S3-compatible Spaces bucket, one plain-text object per refresh.
type ArchiveService struct {
	client *s3.Client
	bucket string
	root   string
}

func NewArchiveService(key, secret, region, bucket, root string) (*ArchiveService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load archive config: %w", err)
	}

	return &ArchiveService{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		root:   strings.Trim(root, "/"),
	}, nil
}

// Archive stores one formatted leaderboard table under
// <root>/leaderboards/<year>/<fetched-at>.txt.
func (s *ArchiveService) Archive(ctx context.Context, year int, fetchedAt time.Time, content string) error {
	key := fmt.Sprintf("leaderboards/%d/%s.txt", year, fetchedAt.Format("2006-01-02T15-04-05Z"))
	if s.root != "" {
		key = s.root + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive snapshot %s: %w", key, err)
	}
	return nil
}
