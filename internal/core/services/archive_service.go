package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/voltfed/voltfed-server/internal/core/config"
	"github.com/voltfed/voltfed-server/internal/core/models"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

// ArchiveService writes committed model versions to object storage for
// long-term retention. The database row remains the source of truth; the
// archive is a backup of the full parameter state.
type ArchiveService struct {
	client     *s3.Client
	bucketName string
}

func NewArchiveService(cfg *config.Config) (*ArchiveService, error) {
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing required AWS credentials")
	}

	if cfg.AWS.Region == "" {
		return nil, fmt.Errorf("AWS region must be specified")
	}

	if cfg.AWS.BucketName == "" {
		return nil, fmt.Errorf("AWS bucket name must be specified")
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AWS.AccessKeyID,
		cfg.AWS.SecretAccessKey,
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &ArchiveService{
		client:     s3.NewFromConfig(awsCfg),
		bucketName: cfg.AWS.BucketName,
	}, nil
}

func (s *ArchiveService) ArchiveVersion(ctx context.Context, model *models.GlobalModel) error {
	log := logger.WithComponent("archive")

	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model version: %w", err)
	}

	key := path.Join("model-versions", model.Name, fmt.Sprintf("v%d.json", model.Version))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload model version: %w", err)
	}

	log.Info().
		Str("bucket", s.bucketName).
		Str("key", key).
		Int("size_bytes", len(payload)).
		Msg("Archived model version")

	return nil
}
