// internal/provision/s3.go
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// s3Namespaces maps blob namespaces onto one bucket per tenant. Works
// against AWS or any S3-compatible endpoint (minio) via BLOB_ENDPOINT.
type s3Namespaces struct {
	cli *s3.Client
	log *zap.SugaredLogger
}

func NewS3Namespaces(ctx context.Context, endpoint string, log *zap.SugaredLogger) (BlobNamespaces, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Namespaces{cli: cli, log: log}, nil
}

func (n *s3Namespaces) CreateNamespace(ctx context.Context, name string) error {
	_, err := n.cli.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return err
	}
	return nil
}

func (n *s3Namespaces) DeleteNamespace(ctx context.Context, name string) error {
	_, err := n.cli.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
			return nil
		}
		return err
	}
	return nil
}
